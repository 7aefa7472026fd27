// Package mailbox implements the store-and-forward downlink queue for
// devices whose network cannot accept pushed data.
//
// Each device (keyed by normalised devEUI) has an ordered queue. Push
// appends and then raises a best-effort wake-up notification; Drain returns
// the whole queue in FIFO order and deletes it in the same transaction, so
// a second Drain with no push in between returns nothing.
//
// Notifications carry no data and no delivery guarantee. A consumer woken
// by one must still call Drain, and may find the queue already empty.
package mailbox
