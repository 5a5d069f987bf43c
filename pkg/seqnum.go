package protocol

// Sequence numbers are 32-bit integers operated on with modular arithmetic.
// The difference is truncated to a signed 16-bit value; this is the wire
// contract, so in-flight ranges must stay well below 2^15.

func SeqLT(a, b uint32) bool {
	return int16(a-b) < 0
}

func SeqLEQ(a, b uint32) bool {
	return int16(a-b) <= 0
}

func SeqGT(a, b uint32) bool {
	return int16(a-b) > 0
}

func SeqGEQ(a, b uint32) bool {
	return int16(a-b) >= 0
}
