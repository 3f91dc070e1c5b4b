// Package config holds the run configuration of imgsheet and loads it from
// YAML or `.sheet` job files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/imgsheet/dsl"
	"github.com/ByLCY/imgsheet/layout"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Config describes one run: where to look, what to place and where to write.
type Config struct {
	RootDir    string   `yaml:"root"`
	OutputPath string   `yaml:"output"`
	Images     []string `yaml:"images"`
	SheetName  string   `yaml:"sheet,omitempty"`

	CellWidthPx     int `yaml:"cell_width"`
	CellHeightPx    int `yaml:"cell_height"`
	ColsPerImage    int `yaml:"cols_per_image"`
	ImageWidthCells int `yaml:"image_width_cells"`
	MaxRows         int `yaml:"max_rows"`

	Traversal string `yaml:"traversal"` // recursive | shallow
	RowSpan   string `yaml:"row_span"`  // last | max

	DirLabel   string `yaml:"dir_label"`
	ImageLabel string `yaml:"image_label"`

	PreviewPath string `yaml:"preview,omitempty"`
	DebugPath   string `yaml:"debug,omitempty"`
}

// Default returns the built-in run: test_dir into test.xlsx with four BMP slots.
func Default() *Config {
	opts := layout.DefaultOptions()
	return &Config{
		RootDir:         "test_dir",
		OutputPath:      "test.xlsx",
		Images:          []string{"test.bmp", "red.bmp", "green.bmp", "blue.bmp"},
		CellWidthPx:     opts.CellWidthPx,
		CellHeightPx:    opts.CellHeightPx,
		ColsPerImage:    opts.ColsPerImage,
		ImageWidthCells: opts.ImageWidthCells,
		MaxRows:         opts.MaxRows,
		Traversal:       layout.TraversalRecursive.String(),
		RowSpan:         layout.RowSpanLast.String(),
		DirLabel:        opts.DirLabel,
		ImageLabel:      opts.ImageLabel,
	}
}

// Load reads a configuration file on top of the defaults. Files ending in
// .yaml or .yml are parsed as YAML; anything else as a `.sheet` job file.
// Relative paths inside the file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalid, err)
		}
	default:
		doc, err := dsl.ParseString(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse job file: %w", err)
		}
		if err := cfg.apply(doc); err != nil {
			return nil, err
		}
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// FromDocument builds a configuration from a parsed job file.
func FromDocument(doc *dsl.Document) (*Config, error) {
	cfg := Default()
	if err := cfg.apply(doc); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the layout engine cannot use.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.RootDir) == "":
		return fmt.Errorf("%w: root is empty", ErrInvalid)
	case strings.TrimSpace(c.OutputPath) == "":
		return fmt.Errorf("%w: output is empty", ErrInvalid)
	case len(c.Images) == 0:
		return fmt.Errorf("%w: images is empty", ErrInvalid)
	case c.CellWidthPx <= 0 || c.CellHeightPx <= 0:
		return fmt.Errorf("%w: cell size must be positive (got %dx%d)", ErrInvalid, c.CellWidthPx, c.CellHeightPx)
	case c.ColsPerImage <= 0:
		return fmt.Errorf("%w: cols_per_image must be positive", ErrInvalid)
	case c.ImageWidthCells <= 0:
		return fmt.Errorf("%w: image_width_cells must be positive", ErrInvalid)
	case c.MaxRows <= 0:
		return fmt.Errorf("%w: max_rows must be positive", ErrInvalid)
	}
	for i, name := range c.Images {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: images[%d] is empty", ErrInvalid, i)
		}
	}
	if _, err := layout.ParseTraversal(c.Traversal); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := layout.ParseRowSpanMode(c.RowSpan); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// LayoutOptions converts the configuration into engine options.
func (c *Config) LayoutOptions(logger *zap.Logger) (layout.Options, error) {
	if err := c.Validate(); err != nil {
		return layout.Options{}, err
	}
	traversal, _ := layout.ParseTraversal(c.Traversal)
	rowSpan, _ := layout.ParseRowSpanMode(c.RowSpan)
	return layout.Options{
		Root:            c.RootDir,
		Images:          append([]string(nil), c.Images...),
		CellWidthPx:     c.CellWidthPx,
		CellHeightPx:    c.CellHeightPx,
		ColsPerImage:    c.ColsPerImage,
		ImageWidthCells: c.ImageWidthCells,
		MaxRows:         c.MaxRows,
		Traversal:       traversal,
		RowSpan:         rowSpan,
		DirLabel:        c.DirLabel,
		ImageLabel:      c.ImageLabel,
		Logger:          logger,
	}, nil
}

func (c *Config) resolvePaths(base string) {
	if base == "" || base == "." {
		return
	}
	for _, p := range []*string{&c.RootDir, &c.OutputPath, &c.PreviewPath, &c.DebugPath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// apply maps job file entries onto the configuration.
func (c *Config) apply(doc *dsl.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: empty job file", ErrInvalid)
	}
	if c.SheetName == "" {
		c.SheetName = doc.Name
	}
	for _, e := range doc.Entries {
		var err error
		switch e.Key {
		case "root":
			c.RootDir, err = e.Value.Text()
		case "output":
			c.OutputPath, err = e.Value.Text()
		case "images":
			c.Images, err = e.Value.Strings()
		case "sheet":
			c.SheetName, err = e.Value.Text()
		case "cell-width":
			c.CellWidthPx, err = e.Value.Int()
		case "cell-height":
			c.CellHeightPx, err = e.Value.Int()
		case "cols-per-image":
			c.ColsPerImage, err = e.Value.Int()
		case "image-width-cells":
			c.ImageWidthCells, err = e.Value.Int()
		case "max-rows":
			c.MaxRows, err = e.Value.Int()
		case "traversal":
			c.Traversal, err = e.Value.Text()
		case "row-span":
			c.RowSpan, err = e.Value.Text()
		case "dir-label":
			c.DirLabel, err = e.Value.Text()
		case "image-label":
			c.ImageLabel, err = e.Value.Text()
		case "preview":
			c.PreviewPath, err = e.Value.Text()
		case "debug":
			c.DebugPath, err = e.Value.Text()
		default:
			return fmt.Errorf("%w: %s: unknown key %q", ErrInvalid, e.Pos, e.Key)
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %s: %v", ErrInvalid, e.Pos, e.Key, err)
		}
	}
	return nil
}
