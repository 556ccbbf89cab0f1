package types

import (
	"fmt"
	"github.com/google/uuid"
	"net"
	"strconv"
	"time"
)

type (
	Project struct {
		ID          uuid.UUID `json:"id" gorm:"primaryKey"`
		Name        string    `json:"name" gorm:"not null"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	DatabaseServer struct {
		ID              uuid.UUID `json:"id" gorm:"primaryKey"`
		ProjectID       uuid.UUID `json:"project_id" gorm:"index"`
		Name            string    `json:"name" gorm:"not null"`
		Description     string    `json:"description"`
		Engine          Engine    `json:"engine" gorm:"not null"`
		Host            string    `json:"host" gorm:"not null"`
		Port            int       `json:"port"`
		Username        string    `json:"username" gorm:"not null"`
		EncryptedSecret string    `json:"-" gorm:"not null"`
		CreatedAt       time.Time `json:"created_at"`
		UpdatedAt       time.Time `json:"updated_at"`
	}

	Database struct {
		ID          uuid.UUID       `json:"id" gorm:"primaryKey"`
		ServerID    uuid.UUID       `json:"server_id" gorm:"not null;index"`
		Name        string          `json:"name" gorm:"not null"`
		Description string          `json:"description"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
		Server      *DatabaseServer `json:"server,omitempty" gorm:"foreignKey:ServerID"`
	}

	NetworkAccess struct {
		ID        uuid.UUID `json:"id" gorm:"primaryKey"`
		ServerID  uuid.UUID `json:"server_id" gorm:"not null;index"`
		IP        string    `json:"ip"`
		Port      int       `json:"port"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Credentials is the decrypted view of a DatabaseServer. It is handed to a single
	// dump or connection test and never persisted.
	Credentials struct {
		Engine   Engine
		Host     string
		Port     int
		Username string
		Secret   string
	}
)

func (c Credentials) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// String never includes the secret so credentials are safe to log
func (c Credentials) String() string {
	return fmt.Sprintf("%s://%s@%s", c.Engine, c.Username, c.Address())
}

func (s *DatabaseServer) EffectivePort() int {
	if s.Port > 0 {
		return s.Port
	}
	return s.Engine.DefaultPort()
}
