package camera

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// RemoteConfig holds configuration for a remote door camera.
type RemoteConfig struct {
	// SignallingURL is the GStreamer webrtcsink signalling endpoint,
	// e.g. "ws://doorcam.local:8443".
	SignallingURL string

	// Producer is the producer name announced by the camera node.
	Producer string

	// DecodeInterval bounds how often buffered H264 is decoded to a
	// JPEG frame. The monitor throttles classification separately.
	DecodeInterval time.Duration

	// ConnectTimeout bounds the wait for the first video track.
	ConnectTimeout time.Duration
}

// DefaultRemoteConfig returns defaults for a doorwatch camera node.
func DefaultRemoteConfig(url string) RemoteConfig {
	return RemoteConfig{
		SignallingURL:  url,
		Producer:       "doorcam",
		DecodeInterval: 100 * time.Millisecond,
		ConnectTimeout: 15 * time.Second,
	}
}

// RemoteCamera receives frames from a remote door camera over WebRTC.
// The camera node publishes H264 through a GStreamer signalling server;
// this side is a recvonly consumer.
type RemoteCamera struct {
	cfg    RemoteConfig
	logger *slog.Logger

	ws      *websocket.Conn
	pc      *webrtc.PeerConnection
	wsMutex sync.Mutex

	peerID     string
	producerID string
	sessionID  string

	frameMu    sync.RWMutex
	frame      []byte
	trackReady chan struct{}

	mu     sync.Mutex
	open   bool
	closed atomic.Bool

	workDir string
}

// NewRemoteCamera creates a remote camera source. The stream is not
// acquired until Open.
func NewRemoteCamera(cfg RemoteConfig, logger *slog.Logger) *RemoteCamera {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteCamera{
		cfg:        cfg,
		logger:     logger.With("component", "camera.remote"),
		trackReady: make(chan struct{}, 1),
	}
}

// Open connects to the signalling server, negotiates the WebRTC
// session and waits for the first video track.
func (c *RemoteCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return nil
	}

	workDir, err := os.MkdirTemp("", "doorwatch-remote-")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAcquire, err)
	}
	c.workDir = workDir
	c.closed.Store(false)

	// Drain a stale ready token from a previous session.
	select {
	case <-c.trackReady:
	default:
	}

	if err := c.connect(); err != nil {
		c.teardown()
		return fmt.Errorf("%w: %v", ErrAcquire, err)
	}

	c.open = true
	c.logger.Info("remote camera connected",
		"url", c.cfg.SignallingURL,
		"producer", c.cfg.Producer)
	return nil
}

// Close ends the session and releases the stream. Safe to call more
// than once.
func (c *RemoteCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil
	}
	c.open = false
	c.teardown()

	c.frameMu.Lock()
	c.frame = nil
	c.frameMu.Unlock()

	c.logger.Info("remote camera closed", "url", c.cfg.SignallingURL)
	return nil
}

// FrameReady reports whether a decoded frame is available.
func (c *RemoteCamera) FrameReady() bool {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()

	c.frameMu.RLock()
	defer c.frameMu.RUnlock()
	return open && c.frame != nil
}

// Frame returns a copy of the latest decoded frame as JPEG bytes.
func (c *RemoteCamera) Frame() ([]byte, error) {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()
	if !open {
		return nil, ErrClosed
	}

	c.frameMu.RLock()
	defer c.frameMu.RUnlock()

	if c.frame == nil {
		return nil, ErrNoFrame
	}
	frame := make([]byte, len(c.frame))
	copy(frame, c.frame)
	return frame, nil
}

func (c *RemoteCamera) teardown() {
	c.closed.Store(true)
	if c.pc != nil {
		c.pc.Close()
		c.pc = nil
	}
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	if c.workDir != "" {
		os.RemoveAll(c.workDir)
		c.workDir = ""
	}
}

func (c *RemoteCamera) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	ws, _, err := dialer.Dial(c.cfg.SignallingURL, nil)
	if err != nil {
		return fmt.Errorf("signalling connect: %w", err)
	}
	c.ws = ws

	if err := c.waitForWelcome(); err != nil {
		return fmt.Errorf("welcome: %w", err)
	}
	if err := c.findProducer(); err != nil {
		return fmt.Errorf("find producer: %w", err)
	}
	if err := c.createPeerConnection(); err != nil {
		return fmt.Errorf("peer connection: %w", err)
	}
	if err := c.startSession(); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	go c.handleSignalling()

	select {
	case <-c.trackReady:
	case <-time.After(c.cfg.ConnectTimeout):
		return fmt.Errorf("timeout waiting for video track")
	}
	return nil
}

func (c *RemoteCamera) waitForWelcome() error {
	c.ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := c.ws.ReadMessage()
	c.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var welcome struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		return err
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %s", welcome.Type)
	}
	c.peerID = welcome.PeerID
	return nil
}

func (c *RemoteCamera) findProducer() error {
	if err := c.writeJSON(map[string]string{"type": "list"}); err != nil {
		return err
	}

	c.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := c.ws.ReadMessage()
	c.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var listResp struct {
		Type      string `json:"type"`
		Producers []struct {
			ID   string            `json:"id"`
			Meta map[string]string `json:"meta"`
		} `json:"producers"`
	}
	if err := json.Unmarshal(msg, &listResp); err != nil {
		return err
	}

	for _, p := range listResp.Producers {
		if name, ok := p.Meta["name"]; ok && name == c.cfg.Producer {
			c.producerID = p.ID
			return nil
		}
	}
	return fmt.Errorf("producer %q not found among %d producers",
		c.cfg.Producer, len(listResp.Producers))
}

func (c *RemoteCamera) createPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	c.pc = pc

	if _, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.logger.Debug("track received",
			"kind", track.Kind().String(),
			"codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go c.handleVideoTrack(track)
		}
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			c.sendICECandidate(candidate)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.logger.Debug("connection state changed", "state", state.String())
	})

	return nil
}

func (c *RemoteCamera) startSession() error {
	return c.writeJSON(map[string]string{
		"type":   "startSession",
		"peerId": c.producerID,
	})
}

func (c *RemoteCamera) handleSignalling() {
	for !c.isClosed() {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.Warn("signalling read failed", "error", err)
			}
			return
		}

		var baseMsg struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		json.Unmarshal(msg, &baseMsg)

		switch baseMsg.Type {
		case "sessionStarted":
			c.sessionID = baseMsg.SessionID

		case "peer":
			c.handlePeerMessage(msg)

		case "endSession":
			return
		}
	}
}

func (c *RemoteCamera) handlePeerMessage(msg []byte) {
	var peerMsg struct {
		SDP *struct {
			Type string `json:"type"`
			SDP  string `json:"sdp"`
		} `json:"sdp"`
		ICE *struct {
			Candidate     string  `json:"candidate"`
			SDPMid        *string `json:"sdpMid"`
			SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
		} `json:"ice"`
	}
	if err := json.Unmarshal(msg, &peerMsg); err != nil {
		c.logger.Warn("bad peer message", "error", err)
		return
	}

	if peerMsg.SDP != nil && peerMsg.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  peerMsg.SDP.SDP,
		}
		if err := c.pc.SetRemoteDescription(offer); err != nil {
			c.logger.Warn("set remote description failed", "error", err)
			return
		}

		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			c.logger.Warn("create answer failed", "error", err)
			return
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			c.logger.Warn("set local description failed", "error", err)
			return
		}
		c.sendSDP(answer)
	}

	if peerMsg.ICE != nil {
		c.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     peerMsg.ICE.Candidate,
			SDPMid:        peerMsg.ICE.SDPMid,
			SDPMLineIndex: peerMsg.ICE.SDPMLineIndex,
		})
	}
}

func (c *RemoteCamera) sendSDP(sdp webrtc.SessionDescription) {
	c.writeJSON(map[string]interface{}{
		"type":      "peer",
		"sessionId": c.sessionID,
		"sdp": map[string]string{
			"type": sdp.Type.String(),
			"sdp":  sdp.SDP,
		},
	})
}

func (c *RemoteCamera) sendICECandidate(candidate *webrtc.ICECandidate) {
	if c.sessionID == "" {
		return
	}
	init := candidate.ToJSON()
	c.writeJSON(map[string]interface{}{
		"type":      "peer",
		"sessionId": c.sessionID,
		"ice": map[string]interface{}{
			"candidate":     init.Candidate,
			"sdpMid":        init.SDPMid,
			"sdpMLineIndex": init.SDPMLineIndex,
		},
	})
}

func (c *RemoteCamera) writeJSON(v interface{}) error {
	c.wsMutex.Lock()
	defer c.wsMutex.Unlock()
	return c.ws.WriteJSON(v)
}

// handleVideoTrack collects H264 payloads and decodes them into JPEG
// frames at the configured interval.
func (c *RemoteCamera) handleVideoTrack(track *webrtc.TrackRemote) {
	select {
	case c.trackReady <- struct{}{}:
	default:
	}

	var nalBuffer bytes.Buffer
	lastDecode := time.Now()

	for !c.isClosed() {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		appendPayload(&nalBuffer, pkt)

		if time.Since(lastDecode) > c.cfg.DecodeInterval {
			c.decodeToJPEG(nalBuffer.Bytes())
			nalBuffer.Reset()
			lastDecode = time.Now()
		}
	}
}

func appendPayload(buf *bytes.Buffer, pkt *rtp.Packet) {
	buf.Write(pkt.Payload)
}

// decodeToJPEG decodes buffered H264 with ffmpeg and caches the frame.
func (c *RemoteCamera) decodeToJPEG(h264Data []byte) {
	if len(h264Data) < 100 {
		return
	}

	h264Path := filepath.Join(c.workDir, "stream.h264")
	jpegPath := filepath.Join(c.workDir, "frame.jpg")

	if err := os.WriteFile(h264Path, h264Data, 0644); err != nil {
		return
	}

	cmd := exec.Command("ffmpeg", "-y", "-i", h264Path,
		"-vframes", "1", "-f", "image2", jpegPath)
	cmd.Run()

	jpegData, err := os.ReadFile(jpegPath)
	if err != nil || len(jpegData) < 1000 {
		return
	}

	c.frameMu.Lock()
	c.frame = jpegData
	c.frameMu.Unlock()
}

func (c *RemoteCamera) isClosed() bool {
	return c.closed.Load()
}
