package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/jeanhaley32/reflexctl/internal/constants"
)

// Source is a located project configuration.
type Source interface {
	// Path is the file the values were read from.
	Path() string

	// Values returns the raw key/value pairs to pass to Resolve.
	Values() map[string]any
}

// Loader finds the project configuration. Not finding one is a normal outcome
// reported with ok == false and a nil error.
type Loader interface {
	Locate() (src Source, ok bool, err error)
}

type fileSource struct {
	path   string
	values map[string]any
}

func (s *fileSource) Path() string           { return s.path }
func (s *fileSource) Values() map[string]any { return s.values }

// FileLoader locates rxconfig.{toml,yaml,yml,json} files.
// Priority:
// 1. Explicit file (if provided) - must exist
// 2. Project file in the search directory ({dir}/rxconfig.*)
type FileLoader struct {
	dir      string
	explicit string
}

// NewFileLoader creates a loader searching dir, or reading explicit when it is
// not empty.
func NewFileLoader(dir, explicit string) *FileLoader {
	return &FileLoader{dir: dir, explicit: explicit}
}

func (l *FileLoader) Locate() (Source, bool, error) {
	v := viper.New()

	if l.explicit != "" {
		v.SetConfigFile(l.explicit)
		if err := v.ReadInConfig(); err != nil {
			return nil, false, fmt.Errorf("failed to read config file %s: %w", l.explicit, err)
		}
		return l.source(v), true, nil
	}

	v.SetConfigName(constants.ConfigModule)
	v.AddConfigPath(l.dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Debugf("no %s file found in %s", constants.ConfigModule, l.dir)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read project config: %w", err)
	}
	return l.source(v), true, nil
}

func (l *FileLoader) source(v *viper.Viper) *fileSource {
	log.Debugf("loaded project config from %s", v.ConfigFileUsed())
	return &fileSource{path: v.ConfigFileUsed(), values: v.AllSettings()}
}
