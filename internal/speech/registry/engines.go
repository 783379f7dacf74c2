package registry

import "github.com/voicetyped/scribe/internal/speech/engine"

// Engines is the global inference engine registry. Backends add themselves
// from init.
var Engines = New[engine.Engine]()
