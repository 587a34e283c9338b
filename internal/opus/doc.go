// Package opus turns arbitrary audio into the Opus frames Discord expects.
//
// Frames travel as concatenated length-prefixed records
// ([uint16 LE length][opus bytes]) with no header. Encode produces them from
// any FFmpeg-readable input; FrameReader reads them back one at a time.
package opus
