package database

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/focusmute/focusmute/internal/models"
	"github.com/pkg/errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	journalFile = "journal.db"
	appDir      = "focusmute"

	// dispatcher workers and CLI readers share the file
	busyTimeoutMillis = 5000
)

// DB is the mute journal store
type DB struct {
	*gorm.DB
	path string
}

// DefaultPath returns the journal location under the user config directory,
// %AppData%\focusmute\journal.db on Windows.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user config directory")
	}
	return filepath.Join(configDir, appDir, journalFile), nil
}

// Connect opens (creating if needed) the journal at path, or at DefaultPath
// when path is empty.
func Connect(path string) (*DB, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create journal directory")
	}

	gdb, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open journal %s", path)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}
	// one writer at a time; sqlite serializes anyway
	sqlDB.SetMaxOpenConns(1)

	return &DB{DB: gdb, path: path}, nil
}

func dsn(path string) string {
	return path + "?_busy_timeout=" + strconv.Itoa(busyTimeoutMillis) + "&_journal_mode=WAL"
}

// Path is the file the journal lives in
func (db *DB) Path() string {
	return db.path
}

// Initialize migrates the journal schema
func (db *DB) Initialize() error {
	if err := db.AutoMigrate(&models.MuteEvent{}, &models.ErrorLog{}); err != nil {
		return errors.Wrap(err, "failed to migrate journal schema")
	}
	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.Close()
}
