package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/avbranch/engine"
	"github.com/xaionaro-go/avbranch/engine/enginetest"
	"github.com/xaionaro-go/avbranch/filebranch"
	"github.com/xaionaro-go/avbranch/muxer"
)

// branchdemo runs the bind/unbind protocol against the in-memory fake
// engine, so the detach choreography can be observed in logs without a
// real media stack.

func main() {
	loggerLevel := logger.LevelDebug
	pflag.Var(&loggerLevel, "log-level", "Log level")
	formatName := pflag.String("format", "matroska", "container format: matroska|mp4|quicktime")
	numVideoTees := pflag.Uint("video-tees", 1, "amount of video tees to bind")
	numAudioTees := pflag.Uint("audio-tees", 1, "amount of audio tees to bind")
	idleAfter := pflag.Duration("idle-after", 100*time.Millisecond, "how long tee pads stay busy after unbind is requested")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	var format muxer.ContainerFormat
	for _, candidate := range muxer.ContainerFormats() {
		if candidate.String() == *formatName {
			format = candidate
		}
	}

	eng := enginetest.New()
	eng.DefaultIdleDelay = *idleAfter
	graph := eng.NewGraph("recorder")

	newTees := func(amount uint) []engine.Element {
		tees := make([]engine.Element, 0, amount)
		for i := uint(0); i < amount; i++ {
			tee, err := eng.NewElement(ctx, "tee")
			assertNoError(err)
			assertNoError(eng.AddToGraph(ctx, graph, tee))
			tees = append(tees, tee)
		}
		return tees
	}
	teeVideos := newTees(*numVideoTees)
	teeAudios := newTees(*numAudioTees)

	branch, err := filebranch.New(ctx, eng, graph, format, "/tmp/branchdemo")
	assertNoError(err)

	assertNoError(branch.Bind(ctx, teeVideos, teeAudios))
	l.Infof("bound: %d connection(s)", branch.ConnectionCount(ctx))

	unbindStart := time.Now()
	assertNoError(branch.Unbind(ctx))
	l.Infof("unbound after %v: %d connection(s) left, %d EOS sent",
		time.Since(unbindStart), branch.ConnectionCount(ctx), eng.NumEOSSent())
}

func assertNoError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
