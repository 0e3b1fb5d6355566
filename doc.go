// Package aurelia provides a Go client for the Aurelia streaming
// speech-synthesis API.
//
// The API speaks JSON over a persistent WebSocket. A single connection
// multiplexes any number of independent generation contexts, each with its
// own ordered frame stream, continuation semantics for incremental text, a
// flush protocol, and mid-stream cancellation.
//
// # Basic Usage
//
//	client := aurelia.NewClient("your-api-key")
//
//	out, err := client.TTS.SpeakCollect(ctx, &aurelia.GenerationRequest{
//	    ModelID:    "aria-2",
//	    Transcript: "Hello, world!",
//	    Voice:      aurelia.Voice{Mode: aurelia.VoiceModeID, ID: voiceID},
//	    OutputFormat: aurelia.OutputFormat{
//	        Container:  aurelia.ContainerRaw,
//	        Encoding:   aurelia.EncodingPCMF32LE,
//	        SampleRate: 44100,
//	    },
//	})
//
// # Streaming
//
// Streaming methods return iter.Seq2 iterators usable with Go 1.23+ range:
//
//	for frame, err := range client.TTS.Speak(ctx, req) {
//	    if err != nil {
//	        return err
//	    }
//	    if frame.Type == aurelia.FrameChunk {
//	        player.Write(frame.Audio)
//	    }
//	}
//
// # Contexts
//
// For low-latency incremental input, open a persistent connection and feed a
// context as text becomes available. Frames for a context are always
// delivered in server emission order; no ordering is guaranteed across
// contexts.
//
//	ws, err := client.TTS.Websocket(ctx)
//	if err != nil {
//	    return err
//	}
//	defer ws.Close()
//
//	tctx, err := ws.Context("")
//	if err != nil {
//	    return err
//	}
//	for _, segment := range segments {
//	    req.Transcript = segment
//	    req.Continue = true
//	    if err := tctx.Send(ctx, req); err != nil {
//	        return err
//	    }
//	}
//	if err := tctx.NoMoreInputs(ctx); err != nil {
//	    return err
//	}
//	for frame, err := range tctx.Receive(ctx) {
//	    ...
//	}
//
// Cancel stops a context immediately from the caller's perspective: the
// local queue is purged and any frames the server still emits for the
// in-flight generation are dropped, never delivered. Flush instead halts
// only queued-but-not-started generation and keeps the context usable for
// further continuation sends.
//
// On connection loss every live context is errored out at once, unblocking
// pending Receive calls; contexts are not recreated automatically because
// their server-side state is lost with the connection.
package aurelia
