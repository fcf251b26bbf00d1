package domain

// ConnID is the opaque identifier of one live transport session.
// Assigned at handshake, never reused for the connection's lifetime.
type ConnID string
