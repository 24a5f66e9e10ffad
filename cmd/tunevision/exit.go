package main

import "tunevision/internal/trigger"

const (
	exitOK          = 0
	exitFailure     = 1
	exitAborted     = trigger.ExitAborted
	exitInterrupted = 130
)

type exitError struct {
	code int
	msg  string
}

func (e exitError) Error() string { return e.msg }
func (e exitError) ExitCode() int { return e.code }
