// Package config implements JSON configuration loading, grounded on the
// teacher's internal/ops.Load (a FileConfig JSON shape resolved into a
// Loaded struct with validated defaults). The teacher's FileConfig
// resolved venues/symbols/a dummy order spec; this one resolves the
// account actor's timers/limits, the storage backends' connection options
// and the websocket server's listen address.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/BitFinance-Co/dex/internal/account"
	"github.com/BitFinance-Co/dex/internal/storesink"
	"github.com/BitFinance-Co/dex/internal/wsfeed"
	"github.com/BitFinance-Co/dex/pkg/conn"
)

// FileConfig mirrors the JSON config layout on disk.
type FileConfig struct {
	Account  AccountFileConfig  `json:"account"`
	Postgres PostgresFileConfig `json:"postgres"`
	Wal      WalFileConfig      `json:"wal"`
	Ws       WsFileConfig       `json:"ws"`
	Listen   string             `json:"listen"`
}

// AccountFileConfig is the JSON shape for account.Config's durations,
// expressed in milliseconds since encoding/json has no native duration.
type AccountFileConfig struct {
	WsMessagesIntervalMs  int64 `json:"wsMessagesIntervalMs"`
	BatchCancelTimeoutMs  int64 `json:"batchCancelTimeoutMs"`
	MaxActiveOrders       int   `json:"maxActiveOrders"`
	ExpirationThresholdMs int64 `json:"expirationThresholdMs"`
	MailboxCapacity       int   `json:"mailboxCapacity"`
}

// PostgresFileConfig maps directly onto pkg/conn.Option.
type PostgresFileConfig struct {
	Host       string            `json:"host"`
	Port       int               `json:"port"`
	User       string            `json:"user"`
	Password   string            `json:"password"`
	Database   string            `json:"database"`
	SSLMode    string            `json:"sslMode"`
	Params     map[string]string `json:"params"`
	ConnString string            `json:"connString"`
}

// WalFileConfig maps onto storesink.Config.
type WalFileConfig struct {
	Dir               string `json:"dir"`
	SegmentMaxSizeMiB int64  `json:"segmentMaxSizeMiB"`
	QueueCapacity     int    `json:"queueCapacity"`
	Enabled           *bool  `json:"enabled"`
}

// WsFileConfig maps onto wsfeed.Config.
type WsFileConfig struct {
	WriteQueueCapacity int   `json:"writeQueueCapacity"`
	WriteTimeoutMs      int64 `json:"writeTimeoutMs"`
	PongTimeoutMs        int64 `json:"pongTimeoutMs"`
	PingIntervalMs       int64 `json:"pingIntervalMs"`
}

// Loaded is the resolved configuration ready for use by cmd/matcherd.
type Loaded struct {
	Account  account.Config
	Postgres conn.Option
	Wal      storesink.Config
	Ws       wsfeed.Config
	Listen   string
}

// Load reads a JSON config file and resolves it into Loaded, applying
// spec.md §6's defaults for anything left unset.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	acc := account.DefaultConfig()
	if cfg.Account.WsMessagesIntervalMs > 0 {
		acc.WsMessagesInterval = time.Duration(cfg.Account.WsMessagesIntervalMs) * time.Millisecond
	}
	if cfg.Account.BatchCancelTimeoutMs > 0 {
		acc.BatchCancelTimeout = time.Duration(cfg.Account.BatchCancelTimeoutMs) * time.Millisecond
	}
	if cfg.Account.MaxActiveOrders > 0 {
		acc.MaxActiveOrders = cfg.Account.MaxActiveOrders
	}
	if cfg.Account.ExpirationThresholdMs > 0 {
		acc.ExpirationThreshold = time.Duration(cfg.Account.ExpirationThresholdMs) * time.Millisecond
	}
	if cfg.Account.MailboxCapacity > 0 {
		acc.MailboxCapacity = cfg.Account.MailboxCapacity
	}

	pg := conn.Option{
		Host:       cfg.Postgres.Host,
		Port:       cfg.Postgres.Port,
		User:       cfg.Postgres.User,
		Password:   cfg.Postgres.Password,
		Database:   cfg.Postgres.Database,
		SSLMode:    cfg.Postgres.SSLMode,
		Params:     cfg.Postgres.Params,
		ConnString: cfg.Postgres.ConnString,
	}

	if cfg.Wal.Dir == "" {
		return Loaded{}, fmt.Errorf("config: wal.dir is required")
	}
	wal := storesink.DefaultConfig(cfg.Wal.Dir)
	if cfg.Wal.SegmentMaxSizeMiB > 0 {
		wal.SegmentMaxSize = cfg.Wal.SegmentMaxSizeMiB << 20
	}
	if cfg.Wal.QueueCapacity > 0 {
		wal.QueueCapacity = cfg.Wal.QueueCapacity
	}
	if cfg.Wal.Enabled != nil {
		wal.Enabled = *cfg.Wal.Enabled
	}

	ws := wsfeed.DefaultConfig()
	if cfg.Ws.WriteQueueCapacity > 0 {
		ws.WriteQueueCapacity = cfg.Ws.WriteQueueCapacity
	}
	if cfg.Ws.WriteTimeoutMs > 0 {
		ws.WriteTimeout = time.Duration(cfg.Ws.WriteTimeoutMs) * time.Millisecond
	}
	if cfg.Ws.PongTimeoutMs > 0 {
		ws.PongTimeout = time.Duration(cfg.Ws.PongTimeoutMs) * time.Millisecond
	}
	if cfg.Ws.PingIntervalMs > 0 {
		ws.PingInterval = time.Duration(cfg.Ws.PingIntervalMs) * time.Millisecond
	}

	listen := cfg.Listen
	if listen == "" {
		listen = ":8080"
	}

	return Loaded{Account: acc, Postgres: pg, Wal: wal, Ws: ws, Listen: listen}, nil
}
