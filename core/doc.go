// Package core contains the service driver domain: address and parameter
// assembly, the hook pipeline, response decoding and the unified error
// envelope. Transport adapters live outside core; core must not depend on
// them.
package core
