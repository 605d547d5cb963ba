// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
)

var (
	ErrZAPInvalidResp = errors.New("zap: invalid response")
	ErrZAPFrameSize   = errors.New("zap: frame too large")
)

// MessageType identifies ZAP message types
type MessageType uint8

const (
	MsgRequest  MessageType = 0x01
	MsgResponse MessageType = 0x02
	MsgError    MessageType = 0x03
)

// Request flags
const (
	FlagEnvelope uint8 = 0x01
)

const maxFrameSize = 64 * 1024 * 1024

// ZAPTransport sends each call over its own TCP connection to the host of
// a zap://host:port base. Frames are length-prefixed, big endian:
//
//	request:  [4 len][1 type][4 reqID][1 flags][2 targetLen][target][payload]
//	response: [4 len][1 type][4 reqID][payload]
//
// target is "<service>/<method>". A MsgError response carries the error
// channel body.
type ZAPTransport struct {
	Dialer net.Dialer

	nextID atomic.Uint32
}

func (z *ZAPTransport) RoundTrip(ctx context.Context, req *Request) (io.ReadCloser, error) {
	u, err := url.Parse(req.Locator.Base())
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLocator, req.Locator)
	}
	conn, err := z.Dialer.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("zap dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	requestID := z.nextID.Add(1)
	var flags uint8
	if req.Envelope {
		flags |= FlagEnvelope
	}
	target := req.Locator.ServiceName() + "/" + req.Method
	if _, err := conn.Write(EncodeZAPRequest(requestID, flags, target, req.Body)); err != nil {
		return nil, fmt.Errorf("zap write: %w", err)
	}

	msg, err := ReadZAPFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("zap read: %w", err)
	}
	if len(msg) < 5 || binary.BigEndian.Uint32(msg[1:5]) != requestID {
		return nil, ErrZAPInvalidResp
	}
	payload := msg[5:]
	switch MessageType(msg[0]) {
	case MsgResponse:
		return io.NopCloser(bytes.NewReader(payload)), nil
	case MsgError:
		return nil, &StatusError{Code: int(MsgError), Status: "zap error", Body: payload}
	default:
		return nil, ErrZAPInvalidResp
	}
}

// EncodeZAPRequest frames a request message.
func EncodeZAPRequest(requestID uint32, flags uint8, target string, payload []byte) []byte {
	msgLen := 1 + 4 + 1 + 2 + len(target) + len(payload)
	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(MsgRequest)
	binary.BigEndian.PutUint32(buf[5:9], requestID)
	buf[9] = flags
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(target)))
	copy(buf[12:], target)
	copy(buf[12+len(target):], payload)
	return buf
}

// EncodeZAPResponse frames a response or error message.
func EncodeZAPResponse(msgType MessageType, requestID uint32, payload []byte) []byte {
	msgLen := 1 + 4 + len(payload)
	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(msgType)
	binary.BigEndian.PutUint32(buf[5:9], requestID)
	copy(buf[9:], payload)
	return buf
}

// ZAPRequest is a decoded request frame.
type ZAPRequest struct {
	ID      uint32
	Flags   uint8
	Service string
	Method  string
	Payload []byte
}

// DecodeZAPRequest parses a frame read by ReadZAPFrame.
func DecodeZAPRequest(msg []byte) (*ZAPRequest, error) {
	if len(msg) < 8 || MessageType(msg[0]) != MsgRequest {
		return nil, ErrZAPInvalidResp
	}
	targetLen := int(binary.BigEndian.Uint16(msg[6:8]))
	if len(msg) < 8+targetLen {
		return nil, ErrZAPInvalidResp
	}
	service, method, _ := strings.Cut(string(msg[8:8+targetLen]), "/")
	return &ZAPRequest{
		ID:      binary.BigEndian.Uint32(msg[1:5]),
		Flags:   msg[5],
		Service: service,
		Method:  method,
		Payload: msg[8+targetLen:],
	}, nil
}

// ReadZAPFrame reads one length-prefixed frame and returns it without the
// length header.
func ReadZAPFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	msgLen := binary.BigEndian.Uint32(header)
	if msgLen == 0 || msgLen > maxFrameSize {
		return nil, ErrZAPFrameSize
	}
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
