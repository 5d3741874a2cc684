// Package session ties one courier's live order feed, validity monitor and
// presence reporting together.
//
// Manager.Open checks the courier, saves the session marker, opens the
// reconciler subscription and starts the approval monitor. The returned
// Session is the handle every courier action goes through. It ends with
// Close or when the monitor revokes it.
package session
