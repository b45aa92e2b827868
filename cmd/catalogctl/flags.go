package main

import (
	"flag"
	"strconv"
)

// stringFlag and floatFlag remember whether they were set, so that omitted
// flags stay out of partial updates.
type stringFlag struct {
	value string
	set   bool
}

func (f *stringFlag) String() string { return f.value }

func (f *stringFlag) Set(v string) error {
	f.value, f.set = v, true
	return nil
}

func (f *stringFlag) ptr() *string {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

type floatFlag struct {
	value float64
	set   bool
}

func (f *floatFlag) String() string {
	if !f.set {
		return ""
	}
	return strconv.FormatFloat(f.value, 'f', -1, 64)
}

func (f *floatFlag) Set(v string) error {
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	f.value, f.set = parsed, true
	return nil
}

func (f *floatFlag) ptr() *float64 {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

func optionalString(fs *flag.FlagSet, name, usage string) *stringFlag {
	f := &stringFlag{}
	fs.Var(f, name, usage)
	return f
}

func optionalFloat(fs *flag.FlagSet, name, usage string) *floatFlag {
	f := &floatFlag{}
	fs.Var(f, name, usage)
	return f
}
