package wsengine

import (
	"github.com/wmdanor/wsengine/internal"
)

type Opcode = internal.Opcode

const (
	// Non-control
	OpcodeContinuation Opcode = internal.OpcodeContinuationFrame
	OpcodeText         Opcode = internal.OpcodeTextFrame
	OpcodeBinary       Opcode = internal.OpcodeBinaryFrame

	// Control
	OpcodeClose Opcode = internal.OpcodeConnectionClose
	OpcodePing  Opcode = internal.OpcodePing
	OpcodePong  Opcode = internal.OpcodePong
)

// MaxHeaderSize is the largest frame header the engine produces or accepts.
const MaxHeaderSize = internal.MaxHeaderSize
