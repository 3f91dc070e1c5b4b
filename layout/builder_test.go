package layout

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"math"
	"path"
	"reflect"
	"strings"
	"testing"
)

// stubDirs 是测试用的目录来源：dirs 按给定顺序返回，files 标记目录内是否有普通文件，
// unreadable 中的目录在 HasFiles 时返回权限错误。
type stubDirs struct {
	dirs       []string
	files      map[string]bool
	unreadable map[string]bool
}

func (s *stubDirs) ListDirs(root string, recursive bool) ([]string, error) {
	if !recursive {
		var out []string
		for _, d := range s.dirs {
			if path.Dir(d) == root {
				out = append(out, d)
			}
		}
		return out, nil
	}
	return s.dirs, nil
}

func (s *stubDirs) HasFiles(dir string) (bool, error) {
	if s.unreadable[dir] {
		return false, &fs.PathError{Op: "open", Path: dir, Err: fs.ErrPermission}
	}
	return s.files[dir], nil
}

// stubImages 按路径返回固定尺寸的图片；broken 中的路径模拟解码失败。
type stubImages struct {
	sizes  map[string]Size
	broken map[string]bool
}

func (s *stubImages) Load(p string) (image.Image, error) {
	if s.broken[p] {
		return nil, fmt.Errorf("decode %s: bad header", p)
	}
	sz, ok := s.sizes[p]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	return image.NewRGBA(image.Rect(0, 0, sz.Width, sz.Height)), nil
}

func (s *stubImages) Resize(img image.Image, width, height int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

var fourImages = []string{"test.bmp", "red.bmp", "green.bmp", "blue.bmp"}

func runEngine(t *testing.T, opts Options, dirs *stubDirs, imgs *stubImages) (*Result, *Sheet) {
	t.Helper()
	if opts.Root == "" {
		opts.Root = "root"
	}
	if opts.Images == nil {
		opts.Images = fourImages
	}
	e, err := NewEngine(opts, dirs, imgs)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	sheet := NewSheet()
	res, err := e.Run(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res, sheet
}

func TestEmptyDirectoriesProduceNoOutput(t *testing.T) {
	dirs := &stubDirs{dirs: []string{"root", "root/b"}, files: map[string]bool{}}
	res, sheet := runEngine(t, Options{}, dirs, &stubImages{})

	if len(sheet.Cells) != 0 || len(sheet.Images) != 0 || len(res.Blocks) != 0 {
		t.Fatalf("空目录不应产生输出: cells=%d images=%d blocks=%d", len(sheet.Cells), len(sheet.Images), len(res.Blocks))
	}
	if res.Cursor != (Cursor{Row: 2, Col: 2}) {
		t.Fatalf("游标应保持在 (2,2)，实际 %+v", res.Cursor)
	}
	if res.Visited != 2 || res.EmptySkipped != 2 {
		t.Fatalf("visited=%d emptySkipped=%d, want 2/2", res.Visited, res.EmptySkipped)
	}
	if !reflect.DeepEqual(sheet.ColWidths, map[int]float64{1: 0}) {
		t.Fatalf("只应写入标签列宽 0，实际 %v", sheet.ColWidths)
	}
}

func TestUnreadableDirectoryIsSkipped(t *testing.T) {
	dirs := &stubDirs{
		dirs:       []string{"root", "root/a", "root/locked"},
		files:      map[string]bool{"root/a": true},
		unreadable: map[string]bool{"root/locked": true},
	}
	imgs := &stubImages{sizes: map[string]Size{"root/a/test.bmp": {Width: 264, Height: 36}}}
	res, sheet := runEngine(t, Options{}, dirs, imgs)

	if len(res.Blocks) != 1 || res.Blocks[0].Path != "root/a" {
		t.Fatalf("只应为 root/a 生成目录块: %+v", res.Blocks)
	}
	if res.EmptySkipped != 2 {
		t.Fatalf("无法读取的目录应计为空目录: emptySkipped=%d", res.EmptySkipped)
	}
	if len(sheet.Images) != 1 {
		t.Fatalf("应嵌入 1 张图片，实际 %d", len(sheet.Images))
	}
}

func TestFullDirectoryBlock(t *testing.T) {
	dirs := &stubDirs{dirs: []string{"root", "root/a"}, files: map[string]bool{"root/a": true}}
	sizes := map[string]Size{}
	for _, name := range fourImages {
		sizes["root/a/"+name] = Size{Width: 100, Height: 50}
	}
	res, sheet := runEngine(t, Options{}, dirs, &stubImages{sizes: sizes})

	// 宽 264 = 88*3，高 round(264*50/100) = 132，占 ceil(132/18) = 8 行
	if len(res.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(res.Blocks))
	}
	if got := res.Blocks[0].RowSpan; got != 8 {
		t.Fatalf("rowSpan = %d, want 8", got)
	}
	if res.TotalColumns != 17 {
		t.Fatalf("totalColumns = %d, want 17", res.TotalColumns)
	}
	if want := (Cursor{Row: 2 + 8 + 3, Col: 2}); res.Cursor != want {
		t.Fatalf("cursor = %+v, want %+v", res.Cursor, want)
	}
	if res.ImagesEmbedded != 4 {
		t.Fatalf("imagesEmbedded = %d, want 4", res.ImagesEmbedded)
	}

	if len(sheet.Images) != 4 {
		t.Fatalf("expected 4 images, got %d", len(sheet.Images))
	}
	for i, img := range sheet.Images {
		if img.Name != fourImages[i] || img.Row != 3 || img.Col != 3+4*i {
			t.Fatalf("image %d at unexpected place: %+v", i, img)
		}
		if img.Width != 264 || img.Height != 132 || img.Image.Bounds() != image.Rect(0, 0, 264, 132) {
			t.Fatalf("image %d has unexpected size: %dx%d %v", i, img.Width, img.Height, img.Image.Bounds())
		}
		label := sheet.Cell(2, 3+4*i)
		if label == nil || label.Text != fourImages[i] {
			t.Fatalf("image label %d = %+v", i, label)
		}
	}

	if c := sheet.Cell(2, 1); c.Text != "root/a" || c.Border != BorderRightTop {
		t.Fatalf("A2 = %+v", c)
	}
	for col := 2; col <= 17; col++ {
		if c := sheet.Cell(2, col); c == nil || c.Border != BorderTop {
			t.Fatalf("col %d: expected top border, got %+v", col, c)
		}
	}
	if sheet.Cell(2, 18) != nil {
		t.Fatalf("顶部边框不应超出第 17 列")
	}
	for row := 3; row < 13; row++ {
		if c := sheet.Cell(row, 1); c == nil || c.Border != BorderRight {
			t.Fatalf("row %d: expected right border, got %+v", row, c)
		}
	}
	if sheet.Cell(13, 1) != nil {
		t.Fatalf("右侧边框不应延伸到第 13 行")
	}
	if got := sheet.ColWidths[1]; got != float64(len("root/a")) {
		t.Fatalf("label column width = %g", got)
	}
}

func TestMissingAndBrokenImagesKeepLabels(t *testing.T) {
	dirs := &stubDirs{dirs: []string{"root/a"}, files: map[string]bool{"root/a": true}}
	imgs := &stubImages{
		sizes:  map[string]Size{"root/a/test.bmp": {Width: 264, Height: 36}},
		broken: map[string]bool{"root/a/red.bmp": true},
	}
	res, sheet := runEngine(t, Options{}, dirs, imgs)

	if len(sheet.Images) != 1 || sheet.Images[0].Name != "test.bmp" {
		t.Fatalf("只应嵌入 test.bmp: %+v", sheet.Images)
	}
	if res.ImagesEmbedded != 1 || res.ImagesSkipped != 3 {
		t.Fatalf("embedded=%d skipped=%d, want 1/3", res.ImagesEmbedded, res.ImagesSkipped)
	}
	if want := []string{"red.bmp", "green.bmp", "blue.bmp"}; !reflect.DeepEqual(res.Blocks[0].Missing, want) {
		t.Fatalf("missing = %v, want %v", res.Blocks[0].Missing, want)
	}
	for i, name := range fourImages {
		if c := sheet.Cell(2, 3+4*i); c == nil || c.Text != name {
			t.Fatalf("缺失图片也应写入标签 %s, got %+v", name, c)
		}
	}
	if want := (Cursor{Row: 2 + 2 + 3, Col: 2}); res.Cursor != want {
		t.Fatalf("cursor = %+v, want %+v", res.Cursor, want)
	}
}

func TestRowSpanModes(t *testing.T) {
	dirs := &stubDirs{
		dirs:  []string{"root/a", "root/c"},
		files: map[string]bool{"root/a": true, "root/c": true},
	}
	imgs := &stubImages{sizes: map[string]Size{
		"root/a/test.bmp": {Width: 264, Height: 180}, // 10 行
		"root/a/red.bmp":  {Width: 264, Height: 36},  // 2 行
	}}

	t.Run("last", func(t *testing.T) {
		res, _ := runEngine(t, Options{RowSpan: RowSpanLast}, dirs, imgs)
		if len(res.Blocks) != 2 {
			t.Fatalf("expected 2 blocks, got %d", len(res.Blocks))
		}
		// root/c 没有目标图片，沿用上一张图片的行数
		if res.Blocks[0].RowSpan != 2 || res.Blocks[1].RowSpan != 2 {
			t.Fatalf("rowSpans = %d/%d, want 2/2", res.Blocks[0].RowSpan, res.Blocks[1].RowSpan)
		}
		if res.Blocks[1].Row != 2+5 || res.Cursor.Row != 2+5+5 {
			t.Fatalf("second block row=%d cursor=%d", res.Blocks[1].Row, res.Cursor.Row)
		}
	})

	t.Run("max", func(t *testing.T) {
		res, _ := runEngine(t, Options{RowSpan: RowSpanMax}, dirs, imgs)
		if len(res.Blocks) != 2 {
			t.Fatalf("expected 2 blocks, got %d", len(res.Blocks))
		}
		if res.Blocks[0].RowSpan != 10 || res.Blocks[1].RowSpan != 0 {
			t.Fatalf("rowSpans = %d/%d, want 10/0", res.Blocks[0].RowSpan, res.Blocks[1].RowSpan)
		}
		if res.Blocks[1].Row != 2+13 || res.Cursor.Row != 2+13+3 {
			t.Fatalf("second block row=%d cursor=%d", res.Blocks[1].Row, res.Cursor.Row)
		}
	})
}

func TestResizeGeometry(t *testing.T) {
	sizes := []Size{{100, 50}, {640, 480}, {3, 1000}, {1000, 3}, {264, 264}, {7, 13}}
	for _, cellW := range []int{88, 50, 101} {
		for _, cellH := range []int{18, 7, 40} {
			opts := Options{CellWidthPx: cellW, CellHeightPx: cellH, MaxRows: 2}
			for _, sz := range sizes {
				dirs := &stubDirs{dirs: []string{"root/a"}, files: map[string]bool{"root/a": true}}
				imgs := &stubImages{sizes: map[string]Size{"root/a/test.bmp": sz}}
				_, sheet := runEngine(t, opts, dirs, imgs)

				if len(sheet.Images) != 1 {
					t.Fatalf("expected 1 image, got %d", len(sheet.Images))
				}
				img := sheet.Images[0]
				if img.Width != 3*cellW {
					t.Fatalf("width = %d, want %d", img.Width, 3*cellW)
				}
				exact := float64(img.Width) * float64(sz.Height) / float64(sz.Width)
				if math.Abs(exact-float64(img.Height)) > 1 {
					t.Fatalf("size %v: height %d too far from %g", sz, img.Height, exact)
				}
				if want := (img.Height + cellH - 1) / cellH; img.RowSpan != want {
					t.Fatalf("size %v cell %dx%d: rowSpan = %d, want %d", sz, cellW, cellH, img.RowSpan, want)
				}
			}
		}
	}
}

func TestLabelColumnWidthIsLongestLabel(t *testing.T) {
	dirs := &stubDirs{
		dirs:  []string{"root", "root/a", "root/longer-name", "root/zz", "root/ignored-because-empty"},
		files: map[string]bool{"root/a": true, "root/longer-name": true, "root/zz": true},
	}
	res, sheet := runEngine(t, Options{}, dirs, &stubImages{})

	want := len("root/longer-name")
	if res.LabelWidth != want || sheet.ColWidths[1] != float64(want) {
		t.Fatalf("labelWidth=%d colWidth=%g, want %d", res.LabelWidth, sheet.ColWidths[1], want)
	}
}

func TestLabelWidthCountsRunes(t *testing.T) {
	dirs := &stubDirs{dirs: []string{"root/画像"}, files: map[string]bool{"root/画像": true}}
	res, _ := runEngine(t, Options{}, dirs, &stubImages{})
	if res.LabelWidth != 7 {
		t.Fatalf("标签宽度应按字符计数: got %d, want 7", res.LabelWidth)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dirs := &stubDirs{
		dirs:  []string{"root", "root/a", "root/b", "root/b/c"},
		files: map[string]bool{"root/a": true, "root/b/c": true},
	}
	imgs := &stubImages{sizes: map[string]Size{
		"root/a/test.bmp":  {Width: 10, Height: 20},
		"root/b/c/red.bmp": {Width: 30, Height: 20},
	}}
	res1, sheet1 := runEngine(t, Options{}, dirs, imgs)
	res2, sheet2 := runEngine(t, Options{}, dirs, imgs)

	if !reflect.DeepEqual(sheet1, sheet2) {
		t.Fatalf("两次运行的工作表不一致")
	}
	if !reflect.DeepEqual(res1, res2) {
		t.Fatalf("两次运行的结果不一致: %+v vs %+v", res1, res2)
	}
}

func TestNonDefaultCellSize(t *testing.T) {
	dirs := &stubDirs{dirs: []string{"root/a"}, files: map[string]bool{"root/a": true}}
	res, sheet := runEngine(t, Options{CellWidthPx: 80, CellHeightPx: 26, MaxRows: 5}, dirs, &stubImages{})

	// 列 [1, 17) 设为 80/8，随后标签列被改写为标签长度
	for col := 2; col < 17; col++ {
		if math.Abs(sheet.ColWidths[col]-10) > 1e-9 {
			t.Fatalf("col %d width = %g, want 10", col, sheet.ColWidths[col])
		}
	}
	if _, ok := sheet.ColWidths[17]; ok {
		t.Fatalf("第 17 列不应被设置列宽")
	}
	if sheet.ColWidths[1] != float64(res.LabelWidth) {
		t.Fatalf("标签列宽 = %g, want %d", sheet.ColWidths[1], res.LabelWidth)
	}

	if len(sheet.RowHeights) != 4 {
		t.Fatalf("应设置 4 行行高，实际 %d", len(sheet.RowHeights))
	}
	for row := 1; row < 5; row++ {
		if math.Abs(sheet.RowHeights[row]-20) > 1e-9 {
			t.Fatalf("row %d height = %g, want 20", row, sheet.RowHeights[row])
		}
	}
}

func TestDefaultCellSizeLeavesGeometryAlone(t *testing.T) {
	dirs := &stubDirs{dirs: []string{"root/a"}, files: map[string]bool{"root/a": true}}
	_, sheet := runEngine(t, Options{}, dirs, &stubImages{})

	if len(sheet.ColWidths) != 1 || len(sheet.RowHeights) != 0 {
		t.Fatalf("默认尺寸只应写入标签列宽: cols=%v rows=%v", sheet.ColWidths, sheet.RowHeights)
	}
}

func TestLabelTemplates(t *testing.T) {
	dirs := &stubDirs{dirs: []string{"root/a"}, files: map[string]bool{"root/a": true}}
	opts := Options{
		Images:     []string{"x.png", "y.png"},
		DirLabel:   "Path: ${dir}",
		ImageLabel: "${index}. ${base}/${name}",
	}
	res, sheet := runEngine(t, opts, dirs, &stubImages{})

	for cell, want := range map[[2]int]string{{2, 1}: "Path: root/a", {2, 3}: "1. a/x.png", {2, 7}: "2. a/y.png"} {
		if c := sheet.Cell(cell[0], cell[1]); c == nil || c.Text != want {
			t.Fatalf("%s = %+v, want %q", CellName(cell[0], cell[1]), c, want)
		}
	}
	if res.LabelWidth != len("Path: root/a") {
		t.Fatalf("labelWidth = %d", res.LabelWidth)
	}
}

func TestShallowTraversal(t *testing.T) {
	dirs := &stubDirs{
		dirs:  []string{"root", "root/a", "root/a/deep"},
		files: map[string]bool{"root": true, "root/a": true, "root/a/deep": true},
	}
	res, _ := runEngine(t, Options{Traversal: TraversalShallow}, dirs, &stubImages{})

	if len(res.Blocks) != 1 || res.Blocks[0].Path != "root/a" {
		t.Fatalf("shallow 只应包含 root/a: %+v", res.Blocks)
	}
}

// failingSurface 在嵌入图片时返回错误。
type failingSurface struct {
	*Sheet
	err error
}

func (f *failingSurface) EmbedImage(row, col int, block ImageBlock) error { return f.err }

func TestSurfaceErrorsPropagate(t *testing.T) {
	dirs := &stubDirs{dirs: []string{"root/a"}, files: map[string]bool{"root/a": true}}
	imgs := &stubImages{sizes: map[string]Size{"root/a/red.bmp": {Width: 1, Height: 1}}}
	e, err := NewEngine(Options{Root: "root", Images: fourImages}, dirs, imgs)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	diskFull := errors.New("disk full")
	_, err = e.Run(context.Background(), &failingSurface{Sheet: NewSheet(), err: diskFull})
	if !errors.Is(err, diskFull) {
		t.Fatalf("expected disk full error, got %v", err)
	}
	var se *SurfaceError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SurfaceError, got %T", err)
	}
	if se.Row != 3 || se.Col != 7 || !strings.Contains(err.Error(), "G3") {
		t.Fatalf("unexpected surface error location: %+v (%v)", se, err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	dirs := &stubDirs{dirs: []string{"root/a"}, files: map[string]bool{"root/a": true}}
	e, err := NewEngine(Options{Root: "root", Images: fourImages}, dirs, &stubImages{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Run(ctx, NewSheet()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewEngineValidation(t *testing.T) {
	dirs, imgs := &stubDirs{}, &stubImages{}

	invalid := []struct {
		name string
		opts Options
		dirs DirSource
	}{
		{"no root", Options{Images: fourImages}, dirs},
		{"no images", Options{Root: "root"}, dirs},
		{"no dir source", Options{Root: "root", Images: fourImages}, nil},
		{"unknown label var", Options{Root: "root", Images: fourImages, DirLabel: "${name}"}, dirs},
	}
	for _, tt := range invalid {
		if _, err := NewEngine(tt.opts, tt.dirs, imgs); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}

	e, err := NewEngine(Options{Root: "root", Images: fourImages}, dirs, imgs)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	got := e.Options()
	if got.CellWidthPx != DefaultCellWidthPx || got.ColsPerImage != 4 || got.ImageWidthPx() != 264 {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if got.Logger == nil {
		t.Fatalf("logger should default to a no-op logger")
	}
}
