/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "errors"

// Command rejections are reported only to the client that issued the
// command, via an error_msg event. Room state is never touched by a
// rejected command.
var (
	errRoomAlreadyExists = errors.New("that room id is already in use")
	errRoomNotFound      = errors.New("no such room")
	errRoomClosed        = errors.New("the room has been closed")
	errActionNotAllowed  = errors.New("that action is not allowed right now")
	errTooLate           = errors.New("too late, someone else buzzed first")
	errValidation        = errors.New("a room id and a name are required")
)
