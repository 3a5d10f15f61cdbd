package wsnet

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/klauspost/compress/zstd"

	replica "replicamgr"
)

// Frame is the on-the-wire envelope one WebSocket message carries,
// wrapping an already wire-encoded replica.WireRecord (Body) with the
// channel/reliability/sequence metadata needed to implement
// "unreliable-sequenced" drop-if-stale semantics over an otherwise
// reliable TCP connection (SPEC_FULL.md §6.5).
type Frame struct {
	Channel     byte
	Reliability replica.Reliability
	Sequence    uint64
	Body        []byte
}

const frameHeaderSize = 1 + 1 + 8 // channel + reliability + sequence

// Codec encodes and decodes Frame values to and from WebSocket message
// bytes. Two implementations are provided: PlainCodec (no compression)
// and ZstdCodec (compresses bodies above a size threshold).
type Codec interface {
	Encode(Frame) ([]byte, error)
	Decode([]byte) (Frame, error)
}

// PlainCodec writes a fixed-size header followed by the raw body.
type PlainCodec struct{}

func (PlainCodec) Encode(f Frame) ([]byte, error) {
	out := make([]byte, frameHeaderSize+len(f.Body))
	out[0] = f.Channel
	out[1] = byte(f.Reliability)
	binary.BigEndian.PutUint64(out[2:10], f.Sequence)
	copy(out[frameHeaderSize:], f.Body)
	return out, nil
}

func (PlainCodec) Decode(data []byte) (Frame, error) {
	if len(data) < frameHeaderSize {
		return Frame{}, errors.New("wsnet: frame too short")
	}
	return Frame{
		Channel:     data[0],
		Reliability: replica.Reliability(data[1]),
		Sequence:    binary.BigEndian.Uint64(data[2:10]),
		Body:        append([]byte(nil), data[frameHeaderSize:]...),
	}, nil
}

// ZstdCodec wraps PlainCodec, compressing bodies at or above
// CompressAbove bytes, grounded on
// hellsoul86-voxelcraft.ai/internal/persistence/snapshot/snapshot.go's
// use of klauspost/compress/zstd for large payloads. A one-byte flag
// follows the plain header to record whether the body was compressed,
// so small CONSTRUCT/DESTRUCT frames pay no compression overhead while
// large SERIALIZE payloads do.
type ZstdCodec struct {
	CompressAbove int

	encOnce sync.Once
	enc     *zstd.Encoder
	decOnce sync.Once
	dec     *zstd.Decoder
}

const (
	flagPlain      = 0
	flagCompressed = 1
)

func (z *ZstdCodec) encoder() *zstd.Encoder {
	z.encOnce.Do(func() {
		z.enc, _ = zstd.NewWriter(nil)
	})
	return z.enc
}

func (z *ZstdCodec) decoder() *zstd.Decoder {
	z.decOnce.Do(func() {
		z.dec, _ = zstd.NewReader(nil)
	})
	return z.dec
}

func (z *ZstdCodec) Encode(f Frame) ([]byte, error) {
	threshold := z.CompressAbove
	if threshold <= 0 {
		threshold = 512
	}

	body := f.Body
	flag := byte(flagPlain)
	if len(body) >= threshold {
		body = z.encoder().EncodeAll(f.Body, nil)
		flag = flagCompressed
	}

	out := make([]byte, frameHeaderSize+1+len(body))
	out[0] = f.Channel
	out[1] = byte(f.Reliability)
	binary.BigEndian.PutUint64(out[2:10], f.Sequence)
	out[frameHeaderSize] = flag
	copy(out[frameHeaderSize+1:], body)
	return out, nil
}

func (z *ZstdCodec) Decode(data []byte) (Frame, error) {
	if len(data) < frameHeaderSize+1 {
		return Frame{}, errors.New("wsnet: frame too short")
	}
	flag := data[frameHeaderSize]
	body := data[frameHeaderSize+1:]
	if flag == flagCompressed {
		decoded, err := z.decoder().DecodeAll(body, nil)
		if err != nil {
			return Frame{}, err
		}
		body = decoded
	} else {
		body = append([]byte(nil), body...)
	}
	return Frame{
		Channel:     data[0],
		Reliability: replica.Reliability(data[1]),
		Sequence:    binary.BigEndian.Uint64(data[2:10]),
		Body:        body,
	}, nil
}

// sequenceGuard drops unreliable-sequenced records whose sequence is
// not newer than the last one accepted for a given NetworkID
// (SPEC_FULL.md §6.5).
type sequenceGuard struct {
	mu   sync.Mutex
	last map[replica.NetworkID]uint64
}

func newSequenceGuard() *sequenceGuard {
	return &sequenceGuard{last: make(map[replica.NetworkID]uint64)}
}

func (g *sequenceGuard) accept(netID replica.NetworkID, seq uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.last[netID]; ok && seq <= prev {
		return false
	}
	g.last[netID] = seq
	return true
}
