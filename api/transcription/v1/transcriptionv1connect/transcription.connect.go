// Package transcriptionv1connect wires the TranscriptionService messages to
// connect handlers and clients.
package transcriptionv1connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	v1 "github.com/voicetyped/scribe/api/transcription/v1"
)

// TranscriptionServiceName is the fully-qualified name of the service.
const TranscriptionServiceName = "scribe.transcription.v1.TranscriptionService"

const (
	TranscriptionServiceTranscribeAudioProcedure       = "/scribe.transcription.v1.TranscriptionService/TranscribeAudio"
	TranscriptionServiceTranscribeAudioStreamProcedure = "/scribe.transcription.v1.TranscriptionService/TranscribeAudioStream"
	TranscriptionServiceListBackendsProcedure          = "/scribe.transcription.v1.TranscriptionService/ListBackends"
	TranscriptionServiceGetTranscriptionProcedure      = "/scribe.transcription.v1.TranscriptionService/GetTranscription"
)

// TranscriptionServiceClient is a client for the TranscriptionService.
type TranscriptionServiceClient interface {
	TranscribeAudio(context.Context, *connect.Request[v1.TranscribeAudioRequest]) (*connect.Response[v1.TranscriptionResponse], error)
	TranscribeAudioStream(context.Context) *connect.ClientStreamForClient[v1.AudioChunk, v1.TranscriptionResponse]
	ListBackends(context.Context, *connect.Request[v1.ListBackendsRequest]) (*connect.Response[v1.ListBackendsResponse], error)
	GetTranscription(context.Context, *connect.Request[v1.GetTranscriptionRequest]) (*connect.Response[v1.TranscriptionResponse], error)
}

// NewTranscriptionServiceClient constructs a client. The JSON codec is always
// used; opts may add interceptors or limits.
func NewTranscriptionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) TranscriptionServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &transcriptionServiceClient{
		transcribeAudio: connect.NewClient[v1.TranscribeAudioRequest, v1.TranscriptionResponse](
			httpClient, baseURL+TranscriptionServiceTranscribeAudioProcedure, opts...),
		transcribeAudioStream: connect.NewClient[v1.AudioChunk, v1.TranscriptionResponse](
			httpClient, baseURL+TranscriptionServiceTranscribeAudioStreamProcedure, opts...),
		listBackends: connect.NewClient[v1.ListBackendsRequest, v1.ListBackendsResponse](
			httpClient, baseURL+TranscriptionServiceListBackendsProcedure, opts...),
		getTranscription: connect.NewClient[v1.GetTranscriptionRequest, v1.TranscriptionResponse](
			httpClient, baseURL+TranscriptionServiceGetTranscriptionProcedure, opts...),
	}
}

type transcriptionServiceClient struct {
	transcribeAudio       *connect.Client[v1.TranscribeAudioRequest, v1.TranscriptionResponse]
	transcribeAudioStream *connect.Client[v1.AudioChunk, v1.TranscriptionResponse]
	listBackends          *connect.Client[v1.ListBackendsRequest, v1.ListBackendsResponse]
	getTranscription      *connect.Client[v1.GetTranscriptionRequest, v1.TranscriptionResponse]
}

func (c *transcriptionServiceClient) TranscribeAudio(ctx context.Context, req *connect.Request[v1.TranscribeAudioRequest]) (*connect.Response[v1.TranscriptionResponse], error) {
	return c.transcribeAudio.CallUnary(ctx, req)
}

func (c *transcriptionServiceClient) TranscribeAudioStream(ctx context.Context) *connect.ClientStreamForClient[v1.AudioChunk, v1.TranscriptionResponse] {
	return c.transcribeAudioStream.CallClientStream(ctx)
}

func (c *transcriptionServiceClient) ListBackends(ctx context.Context, req *connect.Request[v1.ListBackendsRequest]) (*connect.Response[v1.ListBackendsResponse], error) {
	return c.listBackends.CallUnary(ctx, req)
}

func (c *transcriptionServiceClient) GetTranscription(ctx context.Context, req *connect.Request[v1.GetTranscriptionRequest]) (*connect.Response[v1.TranscriptionResponse], error) {
	return c.getTranscription.CallUnary(ctx, req)
}

// TranscriptionServiceHandler is implemented by the server.
type TranscriptionServiceHandler interface {
	TranscribeAudio(context.Context, *connect.Request[v1.TranscribeAudioRequest]) (*connect.Response[v1.TranscriptionResponse], error)
	TranscribeAudioStream(context.Context, *connect.ClientStream[v1.AudioChunk]) (*connect.Response[v1.TranscriptionResponse], error)
	ListBackends(context.Context, *connect.Request[v1.ListBackendsRequest]) (*connect.Response[v1.ListBackendsResponse], error)
	GetTranscription(context.Context, *connect.Request[v1.GetTranscriptionRequest]) (*connect.Response[v1.TranscriptionResponse], error)
}

// NewTranscriptionServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewTranscriptionServiceHandler(svc TranscriptionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
	transcribeAudio := connect.NewUnaryHandler(
		TranscriptionServiceTranscribeAudioProcedure, svc.TranscribeAudio, opts...)
	transcribeAudioStream := connect.NewClientStreamHandler(
		TranscriptionServiceTranscribeAudioStreamProcedure, svc.TranscribeAudioStream, opts...)
	listBackends := connect.NewUnaryHandler(
		TranscriptionServiceListBackendsProcedure, svc.ListBackends, opts...)
	getTranscription := connect.NewUnaryHandler(
		TranscriptionServiceGetTranscriptionProcedure, svc.GetTranscription, opts...)

	return "/" + TranscriptionServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case TranscriptionServiceTranscribeAudioProcedure:
			transcribeAudio.ServeHTTP(w, r)
		case TranscriptionServiceTranscribeAudioStreamProcedure:
			transcribeAudioStream.ServeHTTP(w, r)
		case TranscriptionServiceListBackendsProcedure:
			listBackends.ServeHTTP(w, r)
		case TranscriptionServiceGetTranscriptionProcedure:
			getTranscription.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
