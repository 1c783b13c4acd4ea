package protocol

// Web-style KeyboardEvent.keyCode values. InputEvent.KeyCode is always
// expressed in this space regardless of which viewer front-end produced
// the original key event, so the agent-side injector needs exactly one
// mapping table per platform rather than one per viewer.
const (
	KeyBackspace = 8
	KeyTab       = 9
	KeyEnter     = 13
	KeyShift     = 16
	KeyCtrl      = 17
	KeyAlt       = 18
	KeyPause     = 19
	KeyCapsLock  = 20
	KeyEscape    = 27
	KeySpace     = 32
	KeyPageUp    = 33
	KeyPageDown  = 34
	KeyEnd       = 35
	KeyHome      = 36
	KeyLeft      = 37
	KeyUp        = 38
	KeyRight     = 39
	KeyDown      = 40
	KeyPrintScreen = 44
	KeyInsert    = 45
	KeyDelete    = 46

	Key0 = 48
	Key1 = 49
	Key2 = 50
	Key3 = 51
	Key4 = 52
	Key5 = 53
	Key6 = 54
	Key7 = 55
	Key8 = 56
	Key9 = 57

	KeyA = 65
	KeyB = 66
	KeyC = 67
	KeyD = 68
	KeyE = 69
	KeyF = 70
	KeyG = 71
	KeyH = 72
	KeyI = 73
	KeyJ = 74
	KeyK = 75
	KeyL = 76
	KeyM = 77
	KeyN = 78
	KeyO = 79
	KeyP = 80
	KeyQ = 81
	KeyR = 82
	KeyS = 83
	KeyT = 84
	KeyU = 85
	KeyV = 86
	KeyW = 87
	KeyX = 88
	KeyY = 89
	KeyZ = 90

	KeyMeta = 91

	KeyNumpad0        = 96
	KeyNumpad1        = 97
	KeyNumpad2        = 98
	KeyNumpad3        = 99
	KeyNumpad4        = 100
	KeyNumpad5        = 101
	KeyNumpad6        = 102
	KeyNumpad7        = 103
	KeyNumpad8        = 104
	KeyNumpad9        = 105
	KeyNumpadMultiply = 106
	KeyNumpadAdd      = 107
	KeyNumpadSubtract = 109
	KeyNumpadDecimal  = 110
	KeyNumpadDivide   = 111

	KeyF1  = 112
	KeyF2  = 113
	KeyF3  = 114
	KeyF4  = 115
	KeyF5  = 116
	KeyF6  = 117
	KeyF7  = 118
	KeyF8  = 119
	KeyF9  = 120
	KeyF10 = 121
	KeyF11 = 122
	KeyF12 = 123

	KeyNumLock    = 144
	KeyScrollLock = 145

	KeySemicolon    = 186
	KeyEquals       = 187
	KeyComma        = 188
	KeyMinus        = 189
	KeyPeriod       = 190
	KeySlash        = 191
	KeyBackquote    = 192
	KeyBracketLeft  = 219
	KeyBackslash    = 220
	KeyBracketRight = 221
	KeyQuote        = 222
)

// Modifier bit flags carried in InputEvent.Modifiers.
const (
	ModShift = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)
