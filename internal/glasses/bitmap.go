package glasses

import (
	"sync"

	"github.com/augmental/mouthpad-bridge/internal/crcutil"
)

// maxArmRetries bounds per-arm send retries before that arm is given
// up on (spec.md §4.10: "Per-arm send failures retry up to three times
// before giving up on that arm").
const maxArmRetries = 3

// BitmapResult is delivered to OnComplete when a transmission finishes.
type BitmapResult struct {
	Success bool
}

// bitmapArmState tracks one arm's progress through the current chunk.
type bitmapArmState struct {
	done    bool
	retries int
}

// Bitmap drives the 576xN monochrome bitmap transmission FSM. Packets
// go to Left first; only once both arms confirm the current packet's
// send-complete does the next packet prepare. The invariant
// `inProgress => data != nil && packetsSent <= totalPackets+2` (the
// +2 covers BmpEnd and BmpCrc) is enforced by packetsSent only ever
// advancing once per completed chunk (OnArmChunkSent), once for BmpEnd
// (sendEnd) and once for BmpCrc (OnArmEndAck).
type Bitmap struct {
	send Sender

	mu           sync.Mutex
	inProgress   bool
	chunks       [][]byte
	seq          int
	packetsSent  int
	totalPackets int
	left         bitmapArmState
	right        bitmapArmState
	addrAndData  []byte // address bytes + full transmitted payload, for the final CRC

	OnComplete func(BitmapResult)
}

// NewBitmap creates a Bitmap using send to deliver packets.
func NewBitmap(send Sender) *Bitmap {
	return &Bitmap{send: send}
}

// chunkData splits data into payload-sized chunks honoring the
// first-packet address-prefix reduction in available space.
func chunkData(data []byte) [][]byte {
	var chunks [][]byte
	first := true
	for len(data) > 0 {
		limit := bmpChunkPayload
		if first {
			limit -= len(bmpAddressPrefix)
		}
		if limit > len(data) {
			limit = len(data)
		}
		chunks = append(chunks, data[:limit])
		data = data[limit:]
		first = false
	}
	return chunks
}

// Start begins a new bitmap transmission for the given raw pixel data
// (or full BMP file bytes, per whichever form is in use — the CRC is
// computed identically over address+payload either way).
func (b *Bitmap) Start(data []byte) {
	b.mu.Lock()
	if b.inProgress {
		b.mu.Unlock()
		return
	}
	b.inProgress = true
	b.chunks = chunkData(data)
	b.seq = 0
	b.packetsSent = 0
	b.totalPackets = len(b.chunks)
	b.left = bitmapArmState{}
	b.right = bitmapArmState{}
	b.addrAndData = append(append([]byte(nil), bmpAddressPrefix...), data...)
	b.mu.Unlock()

	b.sendCurrentChunk()
}

func (b *Bitmap) sendCurrentChunk() {
	b.mu.Lock()
	if b.seq >= len(b.chunks) {
		b.mu.Unlock()
		b.sendEnd()
		return
	}
	seq := b.seq
	first := seq == 0
	data := b.chunks[seq]
	b.mu.Unlock()

	packet := BuildBmpChunk(byte(seq), first, data)
	_ = b.send(ArmLeft, packet)
}

// OnArmChunkSent is the send-complete callback for a bitmap chunk:
// Right is sent only after Left's send-complete fires, and the next
// chunk starts only once both arms have completed the current one.
func (b *Bitmap) OnArmChunkSent(arm Arm, ok bool) {
	b.mu.Lock()
	if !b.inProgress {
		b.mu.Unlock()
		return
	}
	seq := b.seq
	data := b.chunks[seq]
	first := seq == 0

	state := &b.left
	if arm == ArmRight {
		state = &b.right
	}

	if !ok {
		state.retries++
		if state.retries > maxArmRetries {
			// Give up on this arm; still let the other arm proceed so
			// the transmission can complete for the working arm.
			state.done = true
		} else {
			armCopy := arm
			b.mu.Unlock()
			packet := BuildBmpChunk(byte(seq), first, data)
			_ = b.send(armCopy, packet)
			return
		}
	} else {
		state.done = true
	}

	if arm == ArmLeft && !b.right.done {
		b.mu.Unlock()
		packet := BuildBmpChunk(byte(seq), first, data)
		_ = b.send(ArmRight, packet)
		return
	}

	if b.left.done && b.right.done {
		b.packetsSent++
		b.seq++
		b.left = bitmapArmState{}
		b.right = bitmapArmState{}
		b.mu.Unlock()
		b.sendCurrentChunk()
		return
	}
	b.mu.Unlock()
}

func (b *Bitmap) sendEnd() {
	end := BuildBmpEnd()
	_ = b.send(ArmLeft, end)
	_ = b.send(ArmRight, end)
	b.mu.Lock()
	b.packetsSent++
	b.mu.Unlock()
}

// OnArmEndAck processes a BmpEnd reply ([0x20, 0xC9]) from arm. Once
// both arms have acked, BmpCrc is sent.
func (b *Bitmap) OnArmEndAck(arm Arm, status byte) {
	b.mu.Lock()
	if !b.inProgress {
		b.mu.Unlock()
		return
	}
	if status != StatusAck {
		b.mu.Unlock()
		b.fail()
		return
	}
	if arm == ArmLeft {
		b.left.done = true
	} else {
		b.right.done = true
	}
	ready := b.left.done && b.right.done
	addrAndData := b.addrAndData
	b.mu.Unlock()

	if ready {
		crc := crcutil.XZ(addrAndData)
		packet := BuildBmpCrc(crc)
		_ = b.send(ArmLeft, packet)
		_ = b.send(ArmRight, packet)
		b.mu.Lock()
		b.packetsSent++
		b.left = bitmapArmState{}
		b.right = bitmapArmState{}
		b.mu.Unlock()
	}
}

// OnArmCrcAck processes the CRC echo reply from arm. Success iff both
// arms accepted (status == StatusAck).
func (b *Bitmap) OnArmCrcAck(arm Arm, status byte) {
	b.mu.Lock()
	if !b.inProgress {
		b.mu.Unlock()
		return
	}
	if status != StatusAck {
		b.mu.Unlock()
		b.fail()
		return
	}
	if arm == ArmLeft {
		b.left.done = true
	} else {
		b.right.done = true
	}
	done := b.left.done && b.right.done
	b.mu.Unlock()

	if done {
		b.finish(true)
	}
}

func (b *Bitmap) fail() {
	b.finish(false)
}

func (b *Bitmap) finish(success bool) {
	b.mu.Lock()
	b.inProgress = false
	onComplete := b.OnComplete
	b.mu.Unlock()
	if onComplete != nil {
		onComplete(BitmapResult{Success: success})
	}
}

// Abort tears down an in-flight transmission, used when either arm
// disconnects (spec.md §4.10 Failure semantics).
func (b *Bitmap) Abort() {
	b.mu.Lock()
	wasInProgress := b.inProgress
	b.inProgress = false
	b.mu.Unlock()
	if wasInProgress {
		b.finish(false)
	}
}

// InProgress reports whether a transmission is currently running.
func (b *Bitmap) InProgress() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inProgress
}
