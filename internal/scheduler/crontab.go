package scheduler

import (
	"al.essio.dev/pkg/shellescape"
	"bytes"
	"context"
	"fmt"
	"github.com/google/shlex"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"nexdb/internal/types"
	"nexdb/logger"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const tagMarker = " # " + Tag + " "

type (
	// Table is a periodic job table holding one job per line
	Table interface {
		Read(ctx context.Context) ([]string, error)
		Write(ctx context.Context, lines []string) error
	}

	systemTable struct {
		user string
	}

	MemoryTable struct {
		mu    sync.Mutex
		lines []string
	}

	// Crontab delivers schedule triggers as tagged lines of a crontab. Lines it does not own are preserved.
	Crontab struct {
		mu       sync.Mutex
		table    Table
		command  []string
		location *time.Location
	}
)

func NewSystemTable(user string) Table {
	return &systemTable{user: user}
}

func (s *systemTable) args(extra ...string) []string {
	if s.user == "" {
		return extra
	}
	return append([]string{"-u", s.user}, extra...)
}

func (s *systemTable) Read(ctx context.Context) ([]string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "crontab", s.args("-l")...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if strings.Contains(strings.ToLower(stderr.String()), "no crontab for") {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "crontab -l: %s", strings.TrimSpace(stderr.String()))
	}
	return splitLines(stdout.String()), nil
}

func (s *systemTable) Write(ctx context.Context, lines []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "crontab", s.args("-")...)
	cmd.Stdin = strings.NewReader(joinLines(lines))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "crontab install: %s", strings.TrimSpace(stderr.String()))
	}
	return nil
}

func NewMemoryTable(lines ...string) *MemoryTable {
	return &MemoryTable{lines: lines}
}

func (m *MemoryTable) Read(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines...), nil
}

func (m *MemoryTable) Write(_ context.Context, lines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append([]string(nil), lines...)
	return nil
}

// NewCrontab writes lines that invoke command; command may carry its own flags
func NewCrontab(table Table, command string, loc *time.Location) (*Crontab, error) {
	parts, err := shlex.Split(command)
	if err != nil {
		return nil, errors.Wrap(err, "invalid crontab command")
	}
	if len(parts) == 0 {
		return nil, errors.New("crontab command is empty")
	}
	if loc == nil {
		loc = time.Local
	}
	return &Crontab{table: table, command: parts, location: loc}, nil
}

func (c *Crontab) Materialize(ctx context.Context, t Target) (*Entry, error) {
	if err := Validate(t.Expression); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lines, err := c.table.Read(ctx)
	if err != nil {
		return nil, err
	}

	kept, _ := withoutSchedule(lines, t.ScheduleID)
	kept = append(kept, c.line(t))
	if err := c.table.Write(ctx, kept); err != nil {
		return nil, err
	}

	logger.Info("crontab entry installed",
		zap.String("schedule", t.ScheduleID.String()),
		zap.String("expression", t.Expression))
	entry := t.entry(c.location)
	return &entry, nil
}

func (c *Crontab) Dematerialize(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines, err := c.table.Read(ctx)
	if err != nil {
		return 0, err
	}

	kept, removed := withoutSchedule(lines, scheduleID)
	if removed == 0 {
		return 0, nil
	}

	if err := c.table.Write(ctx, kept); err != nil {
		return 0, err
	}
	logger.Info("crontab entries removed",
		zap.String("schedule", scheduleID.String()),
		zap.Int("count", removed))
	return removed, nil
}

func (c *Crontab) ListMaterialized(ctx context.Context) ([]Entry, error) {
	c.mu.Lock()
	lines, err := c.table.Read(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result := make([]Entry, 0)
	for _, line := range lines {
		if !strings.Contains(line, tagMarker) {
			continue
		}
		t, err := ParseLine(line)
		if err != nil {
			logger.Warn("skipping unparseable crontab entry",
				zap.String("line", line),
				zap.Error(err))
			continue
		}
		result = append(result, t.entry(c.location))
	}
	sortEntries(result)
	return result, nil
}

func (c *Crontab) ListTaggedIDs(ctx context.Context) ([]uuid.UUID, error) {
	c.mu.Lock()
	lines, err := c.table.Read(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool)
	result := make([]uuid.UUID, 0)
	for _, line := range lines {
		id, err := taggedID(line)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result, nil
}

func (c *Crontab) line(t Target) string {
	args := append([]string{}, c.command...)
	args = append(args,
		"backup", "create",
		"--engine", t.Engine.String(),
		"--database", t.Database,
		"--database-id", t.DatabaseID.String(),
		"--schedule-id", t.ScheduleID.String())
	if t.Upload {
		args = append(args, "--upload")
	}
	return fmt.Sprintf("%s %s%s%s", t.Expression, shellescape.QuoteCommand(args), tagMarker, t.ScheduleID)
}

// ParseLine reconstructs the target of a tagged crontab line
func ParseLine(line string) (Target, error) {
	scheduleID, err := taggedID(line)
	if err != nil {
		return Target{}, err
	}
	idx := strings.LastIndex(line, tagMarker)

	fields := strings.Fields(line[:idx])
	if len(fields) < 6 {
		return Target{}, errors.New("line has no command")
	}
	expr := strings.Join(fields[:5], " ")
	if err := Validate(expr); err != nil {
		return Target{}, err
	}

	// the command is re-split from the raw text so quoted arguments survive
	rest := strings.TrimSpace(line[:idx])
	for i := 0; i < 5; i++ {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[i]))
	}
	args, err := shlex.Split(rest)
	if err != nil {
		return Target{}, errors.Wrap(err, "invalid command")
	}

	t := Target{ScheduleID: scheduleID, Expression: expr}
	for i := 0; i < len(args); i++ {
		var value string
		if i+1 < len(args) {
			value = args[i+1]
		}

		switch args[i] {
		case "--engine":
			engine, err := types.ParseEngine(value)
			if err != nil {
				return Target{}, err
			}
			t.Engine = engine
			i++
		case "--database":
			t.Database = value
			i++
		case "--database-id":
			id, err := uuid.Parse(value)
			if err != nil {
				return Target{}, errors.Wrap(err, "invalid database id")
			}
			t.DatabaseID = id
			i++
		case "--upload":
			t.Upload = true
		}
	}

	if t.Engine == "" || t.Database == "" {
		return Target{}, errors.New("line is missing engine or database")
	}
	return t, nil
}

func taggedID(line string) (uuid.UUID, error) {
	idx := strings.LastIndex(line, tagMarker)
	if idx < 0 {
		return uuid.Nil, errors.New("line carries no schedule tag")
	}

	id, err := uuid.Parse(strings.TrimSpace(line[idx+len(tagMarker):]))
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "invalid schedule id in tag")
	}
	return id, nil
}

func withoutSchedule(lines []string, scheduleID uuid.UUID) ([]string, int) {
	suffix := tagMarker + scheduleID.String()
	kept := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		if strings.HasSuffix(strings.TrimSpace(line), suffix) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	return kept, removed
}

func splitLines(content string) []string {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	return lines
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
