package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

type Engine string

const (
	EngineMysql    Engine = "mysql"
	EnginePostgres Engine = "postgresql"
)

var engineAlias = map[string]Engine{
	"mysql":      EngineMysql,
	"mariadb":    EngineMysql,
	"postgresql": EnginePostgres,
	"postgres":   EnginePostgres,
	"pg":         EnginePostgres,
}

// ParseEngine accepts the canonical engine names and their common spellings
func ParseEngine(value string) (Engine, error) {
	e, ok := engineAlias[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEngine, value)
	}
	return e, nil
}

func (e Engine) Valid() bool {
	return e == EngineMysql || e == EnginePostgres
}

func (e Engine) DefaultPort() int {
	switch e {
	case EngineMysql:
		return 3306
	case EnginePostgres:
		return 5432
	default:
		return 0
	}
}

func (e Engine) String() string {
	return string(e)
}

func (e Engine) Value() (driver.Value, error) {
	return string(e), nil
}

func (e *Engine) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*e = Engine(v)
	case []byte:
		*e = Engine(v)
	default:
		return errors.New("failed to scan Engine: unexpected column type")
	}
	return nil
}
