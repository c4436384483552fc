// Command vbctl is a reference client for the conversation socket.
//
// It streams raw little-endian float32 audio to a running server, either
// from a file or as a generated test tone, and saves the synthesized reply
// audio it gets back.
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	url := flag.String("url", "ws://localhost:8000/ws/conversation", "Conversation WebSocket URL")
	in := flag.String("in", "", "Input file of raw little-endian float32 samples (default: generated tone)")
	out := flag.String("out", "reply.audio", "Output file for synthesized reply audio")
	rate := flag.Int("rate", 16000, "Sample rate for the generated tone")
	seconds := flag.Float64("seconds", 2.0, "Duration of the generated tone")
	frame := flag.Int("frame", 1600, "Samples per frame")
	wait := flag.Duration("wait", 15*time.Second, "How long to wait for the reply")
	flag.Parse()

	samples, err := loadSamples(*in, *rate, *seconds)
	if err != nil {
		fatalf("load input: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		fatalf("dial %s: %v", *url, err)
	}
	defer conn.Close()

	sent := 0
	for off := 0; off < len(samples); off += *frame {
		end := off + *frame
		if end > len(samples) {
			end = len(samples)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, encode(samples[off:end])); err != nil {
			fatalf("send frame: %v", err)
		}
		sent++
	}
	fmt.Printf("sent %d frames (%d samples)\n", sent, len(samples))

	reply, err := collectReply(conn, *wait)
	if len(reply) > 0 {
		if werr := os.WriteFile(*out, reply, 0o644); werr != nil {
			fatalf("write %s: %v", *out, werr)
		}
		fmt.Printf("saved %d bytes of reply audio to %s\n", len(reply), *out)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

// collectReply reads until the server closes the socket or the wait expires.
// Binary messages accumulate as reply audio; a text message is a terminal
// error payload from the pipeline.
func collectReply(conn *websocket.Conn, wait time.Duration) ([]byte, error) {
	var reply []byte
	conn.SetReadDeadline(time.Now().Add(wait))

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return reply, nil
			}
			return reply, fmt.Errorf("read: %w", err)
		}

		switch mt {
		case websocket.BinaryMessage:
			reply = append(reply, data...)
			fmt.Printf("received %d bytes of audio\n", len(data))
		case websocket.TextMessage:
			var payload struct {
				Error string `json:"error"`
				Type  string `json:"type"`
			}
			if jerr := json.Unmarshal(data, &payload); jerr != nil {
				return reply, fmt.Errorf("unrecognized text message: %s", data)
			}
			return reply, fmt.Errorf("server error [%s]: %s", payload.Type, payload.Error)
		}
	}
}

// loadSamples reads float32 samples from a file, or synthesizes a 440 Hz
// tone when no input is given.
func loadSamples(path string, rate int, seconds float64) ([]float32, error) {
	if path == "" {
		return tone(rate, seconds), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%s: size %d is not a whole number of float32 samples", path, len(data))
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples, nil
}

func tone(rate int, seconds float64) []float32 {
	n := int(float64(rate) * seconds)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.3 * float32(math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return samples
}

func encode(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "vbctl: "+format+"\n", args...)
	os.Exit(1)
}
