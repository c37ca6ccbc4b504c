// Package printing contains the receipt printing domain.
// It models the documents that can be printed (kitchen order tickets and
// bills), the physical print settings, and the print job state machine
// that drives an intercepted receipt URL to a printed slip.
package printing
