package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dasmlab/gemmagate/pkg/service"
)

var (
	serverAddr = flag.String("addr", "localhost:50051", "gRPC server address")
	sourceLang = flag.String("source", "auto", "Source language code, or auto to detect")
	targetLang = flag.String("target", "auto", "Target language code, or auto for the other configured language")
	mode       = flag.String("mode", "direct", "Translation mode: direct or explain")
	backend    = flag.String("backend", "auto", "Translation engine")
	textFile   = flag.String("file", "", "Path to text file to translate")
	text       = flag.String("text", "", "Text to translate (if file not provided)")
	timeout    = flag.Duration("timeout", 2*time.Minute, "Request timeout")
	jsonOut    = flag.Bool("json", false, "Print the raw response as JSON")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	var textToTranslate string
	if *textFile != "" {
		data, err := os.ReadFile(*textFile)
		if err != nil {
			logger.WithError(err).Fatalf("Failed to read file: %s", *textFile)
		}
		textToTranslate = string(data)
	} else if *text != "" {
		textToTranslate = *text
	} else {
		logger.Fatal("Either -file or -text must be provided")
	}

	logger.WithFields(logrus.Fields{
		"server":      *serverAddr,
		"source_lang": *sourceLang,
		"target_lang": *targetLang,
		"text_length": len(textToTranslate),
	}).Info("Connecting to gemmagate server...")

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to server")
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	hc, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: service.ServiceName,
	})
	if err != nil {
		logger.WithError(err).Fatal("Health check failed")
	}
	logger.WithFields(logrus.Fields{
		"status": hc.GetStatus().String(),
	}).Info("Server health")

	client := service.NewTranslationClient(conn)

	logger.Info("Translating text...")
	startTime := time.Now()

	resp, err := client.TranslateText(ctx, service.TranslateRequest{
		Text:       textToTranslate,
		SourceLang: *sourceLang,
		TargetLang: *targetLang,
		Mode:       *mode,
		Backend:    *backend,
	})
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"reason": service.ReasonFromStatus(err),
		}).Fatal("Translation failed")
	}

	duration := time.Since(startTime)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			logger.WithError(err).Fatal("Failed to encode response")
		}
	} else {
		printReport(os.Stdout, textToTranslate, resp)
	}

	logger.WithFields(logrus.Fields{
		"id":               resp.ID,
		"duration_seconds": duration.Seconds(),
	}).Info("Translation completed successfully")
}

// printReport writes a human readable summary of resp.
func printReport(w io.Writer, original string, resp service.TranslateResponse) {
	rule := strings.Repeat("-", 72)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", resp.ID)
	fmt.Fprintf(tw, "source\t%s (%s)\n", resp.DetectedSourceName, resp.DetectedSource)
	fmt.Fprintf(tw, "target\t%s (%s)\n", resp.TargetLangName, resp.TargetLang)
	fmt.Fprintf(tw, "backend\t%s\n", resp.Backend)
	fmt.Fprintf(tw, "engine time\t%.2fs\n", resp.DurationSeconds)
	tw.Flush()

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, strings.TrimSpace(original))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, strings.TrimSpace(resp.Translation))
}
