package warp

import (
	"fmt"
	"io"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/aligner/utils"
)

// Table summarizes the calibration: the virtual camera followed by statistics of each UV axis.
func (co *CalibrationOutput) Table() (string, error) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Property", "Value"})
	t.AppendRow(table.Row{"Eye", formatVec3(co.Eye)})
	t.AppendRow(table.Row{"Look at", formatVec3(co.LookAt)})
	t.AppendRow(table.Row{"Up", formatVec3(co.Up)})
	t.AppendRow(table.Row{"FOV", fmt.Sprintf("%.3f°", co.FOV)})
	t.AppendRow(table.Row{"Warp grid", fmt.Sprintf("%dx%d", co.WarpResX, co.WarpResY)})
	t.AppendRow(table.Row{"Points", len(co.Warp)})

	offScreen := 0
	for _, uv := range co.Warp {
		if !onScreen(uv) {
			offScreen++
		}
	}
	t.AppendRow(table.Row{"Off screen", offScreen})

	if len(co.Warp) > 0 {
		t.AppendSeparator()
		us, vs := SplitUV(co.Warp)
		for _, axis := range []struct {
			name string
			data stats.Float64Data
		}{{"u", us}, {"v", vs}} {
			r, err := Range(axis.data)
			if err != nil {
				return "", err
			}
			mean, err := axis.data.Mean()
			if err != nil {
				return "", err
			}
			stddev, err := axis.data.StandardDeviation()
			if err != nil {
				return "", err
			}
			t.AppendRow(table.Row{axis.name + " range", fmt.Sprintf("%.4f .. %.4f", r[0], r[1])})
			t.AppendRow(table.Row{axis.name + " mean", fmt.Sprintf("%.4f ± %.4f", mean, stddev)})
		}
	}
	return t.Render(), nil
}

// Plot draws each row of the warp grid over the unit screen and saves it to path. The image
// format follows the file extension.
func (co *CalibrationOutput) Plot(path string) error {
	if len(co.Warp) != co.WarpResX*co.WarpResY {
		return utils.NewGeometryError("warp has %d entries, expected %dx%d", len(co.Warp), co.WarpResX, co.WarpResY)
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Warp %dx%d, fov %.1f°", co.WarpResX, co.WarpResY, co.FOV)
	p.X.Label.Text = "u"
	p.Y.Label.Text = "v"
	p.Add(plotter.NewGrid())

	screen, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0}})
	if err != nil {
		return err
	}
	screen.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(screen)

	for row := 0; row < co.WarpResY; row++ {
		pts := make(plotter.XYs, 0, co.WarpResX)
		for _, uv := range co.Warp[row*co.WarpResX : (row+1)*co.WarpResX] {
			pts = append(pts, plotter.XY{X: float64(uv[0]), Y: float64(uv[1])})
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return errors.Wrapf(err, "plotting row %d", row)
		}
		line.Width = vg.Points(1)
		p.Add(line, points)
	}
	return errors.Wrap(p.Save(8*vg.Inch, 6*vg.Inch, path), "error saving warp plot")
}

// histogramWidth is the widest bar Histogram draws, in characters.
const histogramWidth = 40

// Histogram writes a text histogram of each UV axis to w, with up to bins buckets per axis.
func (co *CalibrationOutput) Histogram(w io.Writer, bins int) error {
	if len(co.Warp) == 0 {
		return utils.NewGeometryError("warp has no entries to histogram")
	}
	if bins < 1 {
		return utils.NewConfigError("histogram needs at least one bin, got %d", bins)
	}
	us, vs := SplitUV(co.Warp)
	for _, axis := range []struct {
		name string
		data stats.Float64Data
	}{{"u", us}, {"v", vs}} {
		if _, err := fmt.Fprintln(w, axis.name); err != nil {
			return err
		}
		r, err := Range(axis.data)
		if err != nil {
			return err
		}
		if r[0] == r[1] {
			if _, err := fmt.Fprintf(w, "all %d at %.4f\n", len(axis.data), r[0]); err != nil {
				return err
			}
			continue
		}
		hist := histogram.Hist(min(bins, len(axis.data)), axis.data)
		if err := histogram.Fprint(w, hist, histogram.Linear(histogramWidth)); err != nil {
			return errors.Wrapf(err, "error printing %s histogram", axis.name)
		}
	}
	return nil
}

func formatVec3(v mgl32.Vec3) string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v[0], v[1], v[2])
}
