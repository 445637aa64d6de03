package storage

import (
	"fmt"
	"path/filepath"
	"time"
)

// Period selects how a target file rotates
type Period int

const (
	// Yearly rotates into YYYY<suffix>.csv
	Yearly Period = iota
	// Monthly rotates into YYYY_MM<suffix>.csv
	Monthly
)

func (p Period) String() string {
	switch p {
	case Yearly:
		return "yearly"
	case Monthly:
		return "monthly"
	default:
		return fmt.Sprintf("period(%d)", int(p))
	}
}

// Target describes one redundant CSV file family. Rotation is purely
// filename based: the file for a record is chosen from its UTC year/month.
type Target struct {
	Dir    string
	Period Period
	Suffix string
}

// Path returns the file a record stamped at ts belongs to
func (t Target) Path(ts time.Time) string {
	ts = ts.UTC()
	var name string
	switch t.Period {
	case Monthly:
		name = fmt.Sprintf("%04d_%02d", ts.Year(), int(ts.Month()))
	default:
		name = fmt.Sprintf("%04d", ts.Year())
	}
	return filepath.Join(t.Dir, name+t.Suffix+".csv")
}

// DefaultTargets returns the year and year-month files under dataDir plus
// a backup copy of each under dataDir/backupSubdir.
func DefaultTargets(dataDir, backupSubdir string) []Target {
	backupDir := filepath.Join(dataDir, backupSubdir)
	return []Target{
		{Dir: dataDir, Period: Yearly},
		{Dir: dataDir, Period: Monthly},
		{Dir: backupDir, Period: Yearly, Suffix: "_bu"},
		{Dir: backupDir, Period: Monthly, Suffix: "_bu"},
	}
}
