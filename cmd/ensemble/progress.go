package main

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

// barProgress は workflow.Progress を端末のプログレスバーとして表示する
type barProgress struct {
	w   io.Writer
	bar *pb.ProgressBar
}

func (p *barProgress) Start(total int) {
	p.bar = pb.New(total)
	p.bar.SetWriter(p.w)
	p.bar.Set("prefix", "training models ")
	p.bar.SetTemplateString(`{{string . "prefix"}}{{counters . }} {{bar . }} {{etime . }}`)
	p.bar.Start()
}

func (p *barProgress) Increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *barProgress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
