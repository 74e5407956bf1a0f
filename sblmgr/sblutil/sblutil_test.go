package sblutil

import (
	"testing"
	"time"

	"mynewt.apache.org/sblmgr/sblxact/sesn"
)

func TestTxOptionsPrecedence(t *testing.T) {
	defer func() { Opts = GlobalOpts{} }()

	type tcase struct {
		name      string
		opts      GlobalOpts
		profTmo   float64
		profTries int
		want      sesn.TxOptions
	}

	dflt := sesn.NewTxOptions()
	tcs := []tcase{
		{"defaults", GlobalOpts{}, 0, 0, dflt},
		{"profile", GlobalOpts{}, 2.5, 3,
			sesn.TxOptions{Timeout: 2500 * time.Millisecond, Tries: 3}},
		{"flags win", GlobalOpts{Timeout: 1, TimeoutSet: true, Tries: 4,
			TriesSet: true}, 2.5, 3,
			sesn.TxOptions{Timeout: time.Second, Tries: 4}},
		{"unset flag defers", GlobalOpts{Timeout: 1, Tries: 4}, 0.5, 0,
			sesn.TxOptions{Timeout: 500 * time.Millisecond,
				Tries: dflt.Tries}},
	}

	for _, tc := range tcs {
		Opts = tc.opts
		opt, err := TxOptions(tc.profTmo, tc.profTries)
		if err != nil {
			t.Fatalf("%s: %s", tc.name, err.Error())
		}
		if opt != tc.want {
			t.Fatalf("%s: have %+v want %+v", tc.name, opt, tc.want)
		}
	}
}

func TestTxOptionsRejectsUnboundedWait(t *testing.T) {
	defer func() { Opts = GlobalOpts{} }()

	for _, o := range []GlobalOpts{
		{Timeout: 0, TimeoutSet: true},
		{Timeout: -1, TimeoutSet: true},
		{Tries: 0, TriesSet: true},
	} {
		Opts = o
		if _, err := TxOptions(0, 0); err == nil {
			t.Fatalf("%+v: accepted", o)
		}
	}

	Opts = GlobalOpts{}
	if _, err := TxOptions(-2, 0); err == nil {
		t.Fatalf("negative profile timeout accepted")
	}
}
