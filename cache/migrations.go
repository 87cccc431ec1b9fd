package cache

import (
	"bytes"
	"embed"
	"errors"
	"io"
	"io/fs"
	"strings"

	"github.com/btcsuite/btclog/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var sqlSchemas embed.FS

// migrationsPath is the directory of the migrations in sqlSchemas.
const migrationsPath = "migrations"

// migrationLogger adapts the package logger to the migrate logger.
type migrationLogger struct {
	log btclog.Logger
}

// Printf logs a migration message at debug level.
func (m *migrationLogger) Printf(format string, v ...interface{}) {
	m.log.Debugf(strings.TrimRight(format, "\n"), v...)
}

// Verbose returns true when verbose logging output is wanted.
func (m *migrationLogger) Verbose() bool {
	return m.log.Level() <= btclog.LevelDebug
}

// applyMigrations executes all migration files found in the file system
// under the given path using the passed database driver.
func applyMigrations(fs fs.FS, driver database.Driver, path,
	dbName string) error {

	source, err := iofs.New(fs, path)
	if err != nil {
		return err
	}

	sqlMigrate, err := migrate.NewWithInstance(
		"migrations", source, dbName, driver,
	)
	if err != nil {
		return err
	}

	version, _, err := sqlMigrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}

	log.Infof("Applying cache migrations from version=%v", version)

	sqlMigrate.Log = &migrationLogger{log}

	err = sqlMigrate.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// replacerFS wraps a file system and replaces terms in every file it opens,
// so a single set of migrations serves both SQL dialects.
type replacerFS struct {
	parentFS fs.FS
	replaces map[string]string
}

// A compile time assertion to make sure replacerFS implements fs.FS.
var _ fs.FS = (*replacerFS)(nil)

func newReplacerFS(parent fs.FS, replaces map[string]string) *replacerFS {
	return &replacerFS{
		parentFS: parent,
		replaces: replaces,
	}
}

// Open opens a file, replacing its content if it is not a directory.
func (r *replacerFS) Open(name string) (fs.File, error) {
	f, err := r.parentFS.Open(name)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	if stat.IsDir() {
		return f, nil
	}

	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	contentStr := string(content)
	for from, to := range r.replaces {
		contentStr = strings.ReplaceAll(contentStr, from, to)
	}

	return &replacedFile{
		stat:   stat,
		Reader: bytes.NewReader([]byte(contentStr)),
	}, nil
}

// replacedFile is an in-memory file holding replaced content.
type replacedFile struct {
	stat fs.FileInfo

	*bytes.Reader
}

// Stat returns the info of the original file.
func (r *replacedFile) Stat() (fs.FileInfo, error) {
	return r.stat, nil
}

// Close is a no-op, the original file is closed on open.
func (r *replacedFile) Close() error {
	return nil
}
