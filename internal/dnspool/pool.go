package dnspool

import (
	"sync"

	"github.com/miekg/dns"
)

var msgPool = sync.Pool{
	New: func() any {
		return &dns.Msg{}
	},
}

// AcquireMsg obtains a dns.Msg from the pool and resets it to a clean state.
//
//go:inline
func AcquireMsg() *dns.Msg {
	msg := msgPool.Get().(*dns.Msg)
	resetMessage(msg)
	return msg
}

// AcquireQuestion obtains a pooled dns.Msg primed as a recursive query for
// name/qtype. Every CNAME walk step allocates through here instead of
// building fresh messages.
func AcquireQuestion(name string, qtype uint16) *dns.Msg {
	msg := AcquireMsg()
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true
	return msg
}

// ReleaseMsg returns a dns.Msg to the pool after resetting its buffers.
//
//go:inline
func ReleaseMsg(msg *dns.Msg) {
	if msg == nil {
		return
	}
	resetMessage(msg)
	msgPool.Put(msg)
}
