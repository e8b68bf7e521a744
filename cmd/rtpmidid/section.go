package main

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

var errTruncated = errors.New("truncated MIDI command")

// splitSection breaks an RTP-MIDI command section into individual MIDI
// messages. Every command after the first is preceded by a variable length
// delta time, and commands may omit their status byte (running status).
// Delta times are discarded.
func splitSection(section []byte) ([]midi.Message, error) {
	var (
		messages []midi.Message
		running  byte
	)

	for i := 0; i < len(section); {
		if len(messages) > 0 {
			n, err := skipDelta(section[i:])
			if err != nil {
				return messages, err
			}
			i += n
			if i >= len(section) {
				return messages, fmt.Errorf("%w: delta time without command", errTruncated)
			}
		}

		status := section[i]
		start := i
		if status < 0x80 {
			if running == 0 {
				return messages, fmt.Errorf("data byte 0x%02X without running status", status)
			}
			status = running
		} else {
			i++
		}

		var msg []byte
		switch {
		case status == 0xF0:
			end := i
			for end < len(section) && section[end] != 0xF7 {
				end++
			}
			if end == len(section) {
				return messages, fmt.Errorf("%w: unterminated system exclusive", errTruncated)
			}
			msg = append([]byte{status}, section[i:end+1]...)
			i = end + 1
		default:
			size := dataLength(status)
			if i+size > len(section) {
				return messages, fmt.Errorf("%w: status 0x%02X needs %d data bytes", errTruncated, status, size)
			}
			msg = append([]byte{status}, section[i:i+size]...)
			i += size
		}

		// Channel messages set running status, system common cancels it and
		// realtime leaves it alone.
		switch {
		case status < 0xF0:
			running = status
		case status < 0xF8:
			running = 0
		}
		if start == i {
			return messages, fmt.Errorf("no progress at offset %d", i)
		}
		messages = append(messages, midi.Message(msg))
	}
	return messages, nil
}

// skipDelta returns the size of the variable length delta time at the start
// of b.
func skipDelta(b []byte) (int, error) {
	for i := 0; i < len(b) && i < 4; i++ {
		if b[i]&0x80 == 0 {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: bad delta time", errTruncated)
}

// dataLength is the number of data bytes following status.
func dataLength(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	case 0x80, 0x90, 0xA0, 0xB0, 0xE0:
		return 2
	}
	switch status {
	case 0xF1, 0xF3:
		return 1
	case 0xF2:
		return 2
	}
	return 0
}
