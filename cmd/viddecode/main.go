package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/vidpipe"
	"github.com/xaionaro-go/vidpipe/engine/libav"
	"github.com/xaionaro-go/vidpipe/h264"
	"github.com/xaionaro-go/vidpipe/types"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [flags] <input.h264>\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "path to a YAML config file")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	resolutionFlag := pflag.String("resolution", "", "output resolution as WxH; defaults to the stream's own size")
	outputPath := pflag.String("output", "", "file to append the raw RGB24 frames to; omit to only decode and count")
	pflag.Parse()
	if len(pflag.Args()) != 1 {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		l.Fatal(err)
	}
	if *netPprofAddr != "" {
		cfg.NetPprofAddr = *netPprofAddr
	}
	if *outputPath != "" {
		cfg.OutputPath = *outputPath
	}
	if *resolutionFlag != "" {
		if err := cfg.Resolution.Parse(*resolutionFlag); err != nil {
			l.Fatal(err)
		}
	}

	if cfg.NetPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(cfg.NetPprofAddr, nil)) })
	}

	astiav.SetLogLevel(astiav.LogLevelError)
	astiav.SetLogCallback(func(c astiav.Classer, level astiav.LogLevel, fmt, msg string) {
		l.Debugf("ffmpeg: %s", strings.TrimSpace(msg))
	})

	inputPath := pflag.Arg(0)
	stream, err := os.ReadFile(inputPath)
	if err != nil {
		l.Fatal(err)
	}
	accessUnits, err := h264.SplitAccessUnits(stream)
	if err != nil {
		l.Fatalf("unable to split '%s' into access units: %v", inputPath, err)
	}
	l.Debugf("read %s: %d access units", humanize.Bytes(uint64(len(stream))), len(accessUnits))

	var outputFile *os.File
	if cfg.OutputPath != "" {
		outputFile, err = os.Create(cfg.OutputPath)
		if err != nil {
			l.Fatal(err)
		}
		defer outputFile.Close()
	}

	session := vidpipe.NewDecodeSession(ctx, libav.New())
	defer session.Close(ctx)

	t := time.NewTicker(time.Duration(cfg.StatsInterval) * time.Second)
	defer t.Stop()
	printStats := func() {
		statsJSON, err := json.Marshal(session.GetStats())
		if err != nil {
			l.Fatal(err)
		}
		fmt.Printf("%s\n", statsJSON)
	}

	outputRes := cfg.Resolution
	var output []byte

	for idx, au := range accessUnits {
		if outputRes.IsZero() {
			// No explicit size requested: probe the stream's own size and
			// decode at it.
			res, err := probeResolution(ctx, au)
			if err != nil {
				l.Debugf("access unit %d carries no picture size yet: %v", idx, err)
				continue
			}
			outputRes = res
			l.Debugf("stream size: %s", outputRes)
		}
		if uint64(len(output)) < outputRes.RGB24Size() {
			output = make([]byte, outputRes.RGB24Size())
		}

		err := session.Decode(ctx, au, output, outputRes)
		switch err.(type) {
		case nil:
		case vidpipe.ErrEmptyStream:
			l.Debugf("access unit %d carries no picture, skipping", idx)
			continue
		case vidpipe.ErrDecode:
			l.Errorf("unable to decode access unit %d: %v", idx, err)
			continue
		default:
			l.Fatal(err)
		}

		if outputFile != nil {
			if _, err := outputFile.Write(output[:outputRes.RGB24Size()]); err != nil {
				l.Fatal(err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
			printStats()
		default:
		}
	}
	printStats()
}

// probeResolution extracts the picture size of an access unit by feeding
// it to a throwaway session at a dummy size and reading what the stream
// reports back. H.264 sizes live in the SPS; the decode engine already
// parses them, so no second SPS parser is kept here.
func probeResolution(ctx context.Context, au []byte) (types.Resolution, error) {
	probe := vidpipe.NewDecodeSession(ctx, libav.New())
	defer probe.Close(ctx)

	res := types.Resolution{Width: 2, Height: 2}
	output := make([]byte, res.RGB24Size())
	if err := probe.Decode(ctx, au, output, res); err != nil {
		return types.Resolution{}, err
	}
	stats := probe.GetStats()
	if stats.FramesDecoded == 0 {
		return types.Resolution{}, fmt.Errorf("no picture")
	}
	return probe.StreamResolution(), nil
}
