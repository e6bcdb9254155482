package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-yolov3/config"
	"github.com/nvr-ai/go-yolov3/images"
	"github.com/nvr-ai/go-yolov3/inference"
	"github.com/nvr-ai/go-yolov3/logger"
	"github.com/nvr-ai/go-yolov3/models"
	"github.com/nvr-ai/go-yolov3/models/postprocess"
	"github.com/nvr-ai/go-yolov3/models/yolov3"
	"github.com/nvr-ai/go-yolov3/render"
	"github.com/nvr-ai/go-yolov3/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// detection is one record in the JSON report.
type detection struct {
	postprocess.Record
	Label string `json:"label"`
}

// report is the JSON document printed with -json.
type report struct {
	RunID      string      `json:"run_id"`
	Image      string      `json:"image"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Relative   bool        `json:"relative"`
	Detections []detection `json:"detections"`
}

// options are the command line flags.
type options struct {
	configPath string
	imagePath  string
	dir        string
	outPath    string
	envPath    string
	asJSON     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "yolov3.yaml", "Path to the YAML configuration")
	flag.StringVar(&opts.imagePath, "image", "", "Path to the input image")
	flag.StringVar(&opts.dir, "dir", "", "Detect every image in this directory instead of -image")
	flag.StringVar(&opts.outPath, "out", "", "Write the annotated image to this path (a directory with -dir)")
	flag.StringVar(&opts.envPath, "env", ".env", "Environment file loaded before the configuration")
	flag.BoolVar(&opts.asJSON, "json", false, "Print detections as JSON")
	flag.Parse()

	if (opts.imagePath == "") == (opts.dir == "") {
		fmt.Fprintln(os.Stderr, "usage: yolov3-detect -config yolov3.yaml (-image photo.jpg | -dir frames/) [-out path] [-json]")
		os.Exit(2)
	}

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "yolov3-detect: %v\n", err)
		os.Exit(1)
	}
}

// detector holds what is shared by every image of a run.
type detector struct {
	engine   inference.Engine
	labels   *models.LabelSet
	relative bool
	runID    string
	log      logrus.FieldLogger
}

func run(opts options, stdout io.Writer) error {
	if err := config.LoadDotEnv(opts.envPath); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	base, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	log := base.WithField("run_id", runID)

	layerCfg, err := cfg.LayerConfig()
	if err != nil {
		return err
	}
	labels, err := cfg.Labels()
	if err != nil {
		return err
	}

	layer, err := yolov3.NewLayer(yolov3.NewLayerArgs{Name: cfg.Model.Name, Config: layerCfg, Logger: log})
	if err != nil {
		return err
	}

	engine, err := inference.NewEngineBuilder().
		WithLogger(log).
		WithLayer(layer).
		WithSession(cfg.Model.Session).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	d := &detector{
		engine:   engine,
		labels:   labels,
		relative: layerCfg.Relative,
		runID:    runID,
		log:      log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.dir == "" {
		return d.detect(ctx, opts.imagePath, opts.outPath, opts.asJSON, stdout)
	}

	files, err := util.ListImageFiles(opts.dir)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"dir": opts.dir, "images": len(files)}).Info("processing directory")

	for _, f := range files {
		out := ""
		if opts.outPath != "" {
			out = filepath.Join(opts.outPath, filepath.Base(f.Path))
		}
		if err := d.detect(ctx, f.Path, out, opts.asJSON, stdout); err != nil {
			return errors.Wrap(err, f.Path)
		}
	}
	return nil
}

// detect runs one image and prints, and optionally draws, its detections.
func (d *detector) detect(ctx context.Context, imagePath, outPath string, asJSON bool, stdout io.Writer) error {
	log := d.log.WithField("image", imagePath)

	img, err := images.DecodeFile(imagePath)
	if err != nil {
		return err
	}
	bounds := img.Bounds()

	out, err := d.engine.Detect(ctx, img)
	if err != nil {
		return err
	}
	log.WithField("detections", out.Count()).Info("detection finished")

	if asJSON {
		err = writeJSON(stdout, report{
			RunID:      d.runID,
			Image:      imagePath,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Relative:   d.relative,
			Detections: detections(out, d.labels),
		})
	} else {
		_, err = fmt.Fprintf(stdout, "%s:\n", imagePath)
		if err == nil {
			err = writeText(stdout, out, d.labels)
		}
	}
	if err != nil {
		return err
	}

	if outPath == "" {
		return nil
	}
	if d.relative {
		log.Warn("relative coordinates, skipping annotated image")
		return nil
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "can't convert image")
	}
	defer mat.Close()

	render.Draw(&mat, out, d.labels)
	if !gocv.IMWrite(outPath, mat) {
		return errors.Errorf("can't write %s", outPath)
	}
	log.WithField("out", outPath).Info("annotated image written")
	return nil
}

func detections(out *postprocess.Output, labels *models.LabelSet) []detection {
	list := make([]detection, 0, out.Count())
	for _, r := range out.Records {
		if r.Sentinel() {
			continue
		}
		list = append(list, detection{Record: r, Label: labels.Name(r.Class)})
	}
	return list
}

func writeJSON(w io.Writer, r report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(r), "can't encode report")
}

func writeText(w io.Writer, out *postprocess.Output, labels *models.LabelSet) error {
	if out.Count() == 0 {
		_, err := fmt.Fprintln(w, "no detections")
		return err
	}
	for _, r := range out.Records {
		if _, err := fmt.Fprintf(w, "%-14s %s\n", labels.Name(r.Class), r); err != nil {
			return err
		}
	}
	return nil
}
