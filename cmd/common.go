package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/riskscope/riskscope/internal/utils"
	"github.com/riskscope/riskscope/pkg/assess"
	"github.com/riskscope/riskscope/pkg/history"
	"github.com/riskscope/riskscope/pkg/schema"
	"github.com/riskscope/riskscope/pkg/storage"
	"github.com/spf13/viper"
)

// store bundles an opened history with the database and lock behind it.
type store struct {
	db      *storage.DB
	lock    *utils.WriteLock
	history *history.History
}

// openStore opens the configured history. Writers take the database lock
// before loading so they never act on a stale list.
func openStore(ctx context.Context, write bool) (*store, error) {
	dbPath, err := utils.HistoryPath(viper.GetString("history.dbpath"))
	if err != nil {
		return nil, fmt.Errorf("could not resolve history path: %w", err)
	}

	s := &store{}
	if write {
		s.lock = utils.NewWriteLock(dbPath)
		if err := s.lock.Lock(); err != nil {
			return nil, err
		}
	}

	s.db, err = storage.Open(dbPath)
	if err != nil {
		s.Close()
		return nil, err
	}
	utils.Log.Debugf("Using history database %s", dbPath)

	s.history = history.Open(ctx, s.db,
		history.WithSlotName(viper.GetString("history.slot")),
		history.WithMaxRecords(viper.GetInt("history.max")),
	)
	return s, nil
}

func (s *store) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			utils.Log.Warnf("Closing history database: %v", err)
		}
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			utils.Log.Warnf("Releasing history lock: %v", err)
		}
	}
}

func newClient() (*assess.Client, error) {
	return assess.NewClient(assess.Config{
		BaseURL:    viper.GetString("api.url"),
		Timeout:    time.Duration(viper.GetInt("api.timeout")) * time.Second,
		AuxRetries: viper.GetInt("api.aux_retries"),
		Proxy:      viper.GetString("proxy"),
		Schema:     schema.Default(),
	})
}

// displayLocation is the zone used for dates in listings and exports.
func displayLocation() (*time.Location, error) {
	name := viper.GetString("display.timezone")
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("bad display.timezone %q: %w", name, err)
	}
	return loc, nil
}
