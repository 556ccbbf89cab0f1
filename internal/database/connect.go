package database

import (
	"errors"
	"fmt"
	errorpkg "github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"nexdb/internal/types"
	"os"
	"path/filepath"
)

func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errorpkg.Wrap(err, "failed to create DB directory: "+dir)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errorpkg.Wrap(err, "failed to open DB: "+path)
	}

	if err := db.AutoMigrate(
		&types.Project{},
		&types.DatabaseServer{},
		&types.Database{},
		&types.BackupRecord{},
		&types.BackupSchedule{},
		&types.NetworkAccess{}); err != nil {
		return nil, err
	}

	return db, nil
}

func New(db *gorm.DB) Repositories {
	return Repositories{
		Projects:      NewProjectRepository(db),
		Servers:       NewServerRepository(db),
		Databases:     NewDatabaseRepository(db),
		Backups:       NewBackupRepository(db),
		Schedules:     NewScheduleRepository(db),
		NetworkAccess: NewNetworkAccessRepository(db),
	}
}

// notFound converts gorm's sentinel into the domain NotFoundError
func notFound(err error, kind string, id fmt.Stringer) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NewNotFoundError(kind, id)
	}
	return err
}
