package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"connectrpc.com/connect"

	transcriptionv1 "github.com/voicetyped/scribe/api/transcription/v1"
	"github.com/voicetyped/scribe/api/transcription/v1/transcriptionv1connect"
	"github.com/voicetyped/scribe/internal/connectutil"
)

const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorRed   = "\033[31m"
)

func info(msg string, a ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[info] "+colorReset+msg+"\n", a...)
}

func ok(msg string, a ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[ok] "+colorReset+msg+"\n", a...)
}

func fail(msg string, a ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[error] "+colorReset+msg+"\n", a...)
}

func main() {
	var (
		server    string
		inPath    string
		format    string
		stream    bool
		chunkSize int
		list      bool
		getID     string
		timeout   time.Duration
	)

	flag.StringVar(&server, "server", envOr("SCRIBE_URL", "http://localhost:8080"), "Server base URL (or SCRIBE_URL)")
	flag.StringVar(&inPath, "input", "", "Audio file to transcribe (-i)")
	flag.StringVar(&inPath, "i", "", "Audio file to transcribe")
	flag.StringVar(&format, "format", "", "Declared container format, default from extension")
	flag.BoolVar(&stream, "stream", false, "Upload in fragments over a client stream")
	flag.IntVar(&chunkSize, "chunk-size", 1<<20, "Fragment size in bytes for -stream")
	flag.BoolVar(&list, "list", false, "List engine backends and exit")
	flag.StringVar(&getID, "get", "", "Fetch a stored transcription by request id")
	flag.DurationVar(&timeout, "timeout", time.Hour, "Overall request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := transcriptionv1connect.NewTranscriptionServiceClient(
		connectutil.H2CClient(), server, connectutil.DefaultClientOptions()...)

	var err error
	switch {
	case list:
		err = listBackends(ctx, client)
	case getID != "":
		var resp *connect.Response[transcriptionv1.TranscriptionResponse]
		resp, err = client.GetTranscription(ctx, connect.NewRequest(&transcriptionv1.GetTranscriptionRequest{RequestId: getID}))
		if err == nil {
			err = report(resp.Msg)
		}
	case inPath != "":
		var msg *transcriptionv1.TranscriptionResponse
		if stream {
			msg, err = transcribeStream(ctx, client, inPath, format, chunkSize)
		} else {
			msg, err = transcribeUnary(ctx, client, inPath, format)
		}
		if err == nil {
			err = report(msg)
		}
	default:
		fail("one of --input, --list or --get is required")
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fail("%v", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func transcribeUnary(ctx context.Context, client transcriptionv1connect.TranscriptionServiceClient, path, format string) (*transcriptionv1.TranscriptionResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info("uploading %s (%d bytes)", filepath.Base(path), len(data))
	resp, err := client.TranscribeAudio(ctx, connect.NewRequest(&transcriptionv1.TranscribeAudioRequest{
		Filename:  filepath.Base(path),
		AudioData: data,
		Format:    format,
	}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func transcribeStream(ctx context.Context, client transcriptionv1connect.TranscriptionServiceClient, path, format string, chunkSize int) (*transcriptionv1.TranscriptionResponse, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := client.TranscribeAudioStream(ctx)
	buf := make([]byte, chunkSize)
	sent := 0
	for {
		n, rerr := io.ReadFull(f, buf)
		if n > 0 {
			msg := &transcriptionv1.AudioChunk{ChunkData: buf[:n]}
			if sent == 0 {
				msg.Filename = filepath.Base(path)
				msg.Format = format
			}
			if err := s.Send(msg); err != nil {
				return nil, fmt.Errorf("send fragment %d: %w", sent, err)
			}
			sent++
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return nil, rerr
		}
	}
	info("streamed %s in %d fragments", filepath.Base(path), sent)
	resp, err := s.CloseAndReceive()
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func listBackends(ctx context.Context, client transcriptionv1connect.TranscriptionServiceClient) error {
	resp, err := client.ListBackends(ctx, connect.NewRequest(&transcriptionv1.ListBackendsRequest{}))
	if err != nil {
		return err
	}
	for _, b := range resp.Msg.Backends {
		marker := " "
		if b.Active {
			marker = "*"
		}
		fmt.Printf("%s %-10s default=%-24s models=%v\n", marker, b.Name, b.DefaultModel, b.Models)
	}
	return nil
}

func report(msg *transcriptionv1.TranscriptionResponse) error {
	if !msg.Success {
		return fmt.Errorf("request %s failed: %s", msg.RequestId, msg.ErrorMessage)
	}
	st := msg.GetStats()
	ok("request %s: %.1fs audio in %.1fs (%.1fx), %d words, %d chunks, %d dropped",
		msg.RequestId, msg.AudioDuration, msg.ProcessingTime, st.SpeedFactor, st.WordCount, st.ChunkCount, st.DroppedChunks)
	fmt.Println(msg.Transcript)
	return nil
}
