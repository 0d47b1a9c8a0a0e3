package midi

// MIDI message types (status high nibble)
const (
	NoteOff         uint8 = 0x80
	NoteOn          uint8 = 0x90
	PolyPressure    uint8 = 0xA0
	CC              uint8 = 0xB0
	ProgramChange   uint8 = 0xC0
	ChannelPressure uint8 = 0xD0
	PitchBend       uint8 = 0xE0
	System          uint8 = 0xF0
)

// System messages
const (
	SysExStart   uint8 = 0xF0
	TimeCode     uint8 = 0xF1
	SongPosition uint8 = 0xF2
	SongSelect   uint8 = 0xF3
	TuneRequest  uint8 = 0xF6
	SysExEnd     uint8 = 0xF7
	TimingClock  uint8 = 0xF8
	SeqStart     uint8 = 0xFA
	SeqContinue  uint8 = 0xFB
	SeqStop      uint8 = 0xFC
	ActiveSense  uint8 = 0xFE
	SystemReset  uint8 = 0xFF
)

// Controller numbers handled by the processor
const (
	CCBankMSB      uint8 = 0
	CCModulation   uint8 = 1
	CCDataEntryMSB uint8 = 6
	CCVolume       uint8 = 7
	CCPan          uint8 = 10
	CCExpression   uint8 = 11
	CCBankLSB      uint8 = 32
	CCDataEntryLSB uint8 = 38
	CCHold1        uint8 = 64
	CCNRPNLSB      uint8 = 98
	CCNRPNMSB      uint8 = 99
	CCRPNLSB       uint8 = 100
	CCRPNMSB       uint8 = 101
	CCAllSoundOff  uint8 = 120
	CCAllNotesOff  uint8 = 123
)

// dataLen returns the number of data bytes that follow status.
func dataLen(status uint8) int {
	switch status & 0xF0 {
	case NoteOff, NoteOn, PolyPressure, CC, PitchBend:
		return 2
	case ProgramChange, ChannelPressure:
		return 1
	}
	switch status {
	case TimeCode, SongSelect:
		return 1
	case SongPosition:
		return 2
	}
	return 0
}
