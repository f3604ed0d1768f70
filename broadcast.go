/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Broadcaster (component C): resolve a recipient set and dispatch JSON
// frames, tolerating closed/half-open sockets. A send never blocks the
// caller and never fails the triggering handler (§4.3, §7).

// broadcastTargeted delivers msg to the creator and, if bound, the invitee.
func (e *Engine) broadcastTargeted(creatorID, inviteeID string, msg any) {
	for _, c := range e.cache.TargetedSockets(creatorID, inviteeID) {
		e.sendNonBlocking(c, msg)
	}
}

// broadcastAll delivers msg to every online socket.
func (e *Engine) broadcastAll(msg any) {
	for _, c := range e.cache.AllSockets() {
		e.sendNonBlocking(c, msg)
	}
}

// sendNonBlocking is the actual guarded send; a full buffer means the
// recipient is stuck or dead, so the frame is dropped rather than blocking
// the rest of the recipient set.
func (e *Engine) sendNonBlocking(client *Client, msg any) {
	select {
	case client.send <- msg:
	default:
		logf(e.cfg, "BROADCAST: dropping frame for %s (buffer full)", client.connID)
	}
}

// challengePayload builds the enriched challenge object carried by every
// outbound message that references a challenge (§6).
func (e *Engine) challengePayload(c *Challenge) ChallengePayload {
	return newChallengePayload(c, e.cache.Nominations(c.ID))
}
