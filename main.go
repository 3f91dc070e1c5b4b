package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ByLCY/imgsheet/config"
	"github.com/ByLCY/imgsheet/fsutil"
	"github.com/ByLCY/imgsheet/imaging"
	"github.com/ByLCY/imgsheet/layout"
	"github.com/ByLCY/imgsheet/renderer"
	canvasrenderer "github.com/ByLCY/imgsheet/renderer/canvas"
	"github.com/ByLCY/imgsheet/renderer/xlsx"
)

var (
	verbose     bool
	writeConfig string
	overrides   config.Config

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "imgsheet [job-file]",
	Short: "把目录树中的图片排版到 xlsx 工作表",
	Long: `imgsheet 遍历根目录，为每个含有文件的目录写入一个带粗边框的块：
目录标签、图片名以及按单元格宽度缩放后嵌入的图片。

不带参数时使用默认配置（test_dir → test.xlsx）。
job-file 可以是 .yaml/.yml，也可以是 .sheet 描述文件；命令行参数优先。`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("初始化日志失败: %w", err)
		}
		return nil
	},
	RunE: runRoot,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&overrides.RootDir, "root", "", "要遍历的根目录")
	f.StringVarP(&overrides.OutputPath, "out", "o", "", "xlsx 输出路径")
	f.StringSliceVar(&overrides.Images, "images", nil, "每个目录中要放置的图片文件名（可重复或逗号分隔）")
	f.StringVar(&overrides.SheetName, "sheet", "", "工作表名称")
	f.IntVar(&overrides.CellWidthPx, "cell-width", 0, "单元格宽度（像素）")
	f.IntVar(&overrides.CellHeightPx, "cell-height", 0, "单元格高度（像素）")
	f.StringVar(&overrides.Traversal, "traversal", "", "目录遍历方式：recursive 或 shallow")
	f.StringVar(&overrides.RowSpan, "row-span", "", "目录块行数：last 或 max")
	f.StringVar(&overrides.PreviewPath, "preview", "", "PDF 预览输出路径")
	f.StringVar(&overrides.DebugPath, "debug", "", "布局调试 JSON 输出路径")
	f.StringVar(&writeConfig, "write-config", "", "将最终配置写为 YAML 后退出")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")
}

func main() {
	err := rootCmd.Execute()
	// RunE 失败时 cobra 不会调用 PersistentPostRun，因此在这里统一刷新日志。
	syncLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func syncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if len(args) == 1 {
		loaded, err := config.Load(args[0])
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyFlags(cmd, cfg)

	if writeConfig != "" {
		if err := cfg.Save(writeConfig); err != nil {
			return err
		}
		fmt.Printf("已写入配置：%s\n", writeConfig)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := run(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("生成工作表失败: %w", err)
	}
	fmt.Printf("已生成工作表：%s（%d 个目录块，%d 张图片）\n", cfg.OutputPath, len(res.Blocks), res.ImagesEmbedded)
	return nil
}

// applyFlags 只覆盖命令行中显式给出的参数。
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("root", func() { cfg.RootDir = overrides.RootDir })
	set("out", func() { cfg.OutputPath = overrides.OutputPath })
	set("images", func() { cfg.Images = overrides.Images })
	set("sheet", func() { cfg.SheetName = overrides.SheetName })
	set("cell-width", func() { cfg.CellWidthPx = overrides.CellWidthPx })
	set("cell-height", func() { cfg.CellHeightPx = overrides.CellHeightPx })
	set("traversal", func() { cfg.Traversal = overrides.Traversal })
	set("row-span", func() { cfg.RowSpan = overrides.RowSpan })
	set("preview", func() { cfg.PreviewPath = overrides.PreviewPath })
	set("debug", func() { cfg.DebugPath = overrides.DebugPath })
}

// run 串联布局、xlsx 输出以及可选的预览与调试输出。
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) (*layout.Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts, err := cfg.LayoutOptions(log)
	if err != nil {
		return nil, err
	}
	engine, err := layout.NewEngine(opts, fsutil.Source{}, imaging.Source{})
	if err != nil {
		return nil, err
	}

	book, err := xlsx.New(cfg.SheetName)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	sheet := layout.NewSheet()
	res, err := engine.Run(ctx, layout.Tee(book, sheet))
	if err != nil {
		if errors.Is(err, fsutil.ErrRootNotFound) {
			log.Error("根目录不存在", zap.String("root", cfg.RootDir))
		}
		return nil, err
	}
	log.Info("布局完成",
		zap.Int("blocks", len(res.Blocks)),
		zap.Int("images", res.ImagesEmbedded),
		zap.Int("skipped", res.ImagesSkipped),
		zap.Int("empty_dirs", res.EmptySkipped))

	if err := ensureDir(cfg.OutputPath); err != nil {
		return nil, err
	}
	if err := book.Save(cfg.OutputPath); err != nil {
		return nil, err
	}

	if cfg.PreviewPath != "" {
		r := canvasrenderer.NewRenderer(canvasrenderer.Options{
			CellWidthPx:  cfg.CellWidthPx,
			CellHeightPx: cfg.CellHeightPx,
		})
		if err := writePreview(r, sheet, cfg.PreviewPath); err != nil {
			return nil, err
		}
		log.Debug("预览已写入", zap.String("path", cfg.PreviewPath))
	}

	if cfg.DebugPath != "" {
		if err := writeDebug(res, sheet, cfg.DebugPath); err != nil {
			return nil, err
		}
		log.Debug("调试 JSON 已写入", zap.String("path", cfg.DebugPath))
	}
	return res, nil
}

func writePreview(r renderer.Renderer, sheet *layout.Sheet, path string) error {
	data, err := r.Render(sheet)
	if err != nil {
		return fmt.Errorf("渲染预览失败: %w", err)
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入预览文件失败: %w", err)
	}
	return nil
}

func writeDebug(res *layout.Result, sheet *layout.Sheet, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := layout.WriteDebugJSON(res, sheet, path); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	return nil
}
