// Package main is a command that removes lens distortion from an image given
// the camera's calibrated parameters.
package main

import (
	"flag"

	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"

	"github.com/omnivis/omnicam/camera"
	"github.com/omnivis/omnicam/undistort"
)

var logger = golog.NewDevelopmentLogger("undistort")

func main() {
	paramsPath := flag.String("params", "", "path to the camera parameters JSON")
	alpha := flag.Float64("alpha", 0, "free scaling parameter in [0,1]: 0 keeps only valid pixels, 1 keeps all source pixels")
	scale := flag.Float64("scale", 1, "output image scale relative to the input")
	toPinhole := flag.Bool("pinhole", false, "reproject to a perspective (pinhole) view instead of only removing distortion")
	bilinear := flag.Bool("bilinear", true, "use bilinear interpolation instead of nearest neighbor")
	flag.Parse()

	if *paramsPath == "" || flag.NArg() < 2 {
		logger.Fatal("usage: undistort -params <camera.json> [flags] <in> <out>")
	}

	cam, err := camera.NewModelFromJSONFile(*paramsPath)
	if err != nil {
		logger.Fatalw("cannot load camera parameters", "path", *paramsPath, "error", err)
	}

	interp := undistort.NearestNeighbor
	if *bilinear {
		interp = undistort.Bilinear
	}

	var undistorter *undistort.MappedUndistorter
	if *toPinhole {
		undistorter, err = undistort.NewMappedUndistorterToPinhole(cam, *alpha, *scale, interp, logger)
	} else {
		undistorter, err = undistort.NewMappedUndistorter(cam, *alpha, *scale, interp, logger)
	}
	if err != nil {
		logger.Fatalw("cannot build the undistorter", "error", err)
	}

	img, err := imaging.Open(flag.Arg(0))
	if err != nil {
		logger.Fatalw("cannot open input image", "path", flag.Arg(0), "error", err)
	}

	out, err := undistorter.UndistortImage(img)
	if err != nil {
		logger.Fatalw("cannot undistort image", "error", err)
	}

	if err := imaging.Save(out, flag.Arg(1)); err != nil {
		logger.Fatalw("cannot save output image", "path", flag.Arg(1), "error", err)
	}
	logger.Infow("wrote undistorted image",
		"path", flag.Arg(1),
		"width", out.Bounds().Dx(),
		"height", out.Bounds().Dy())
}
