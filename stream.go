package main

import (
	"context"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"sync"

	"github.com/golang/glog"
	"github.com/icza/mjpeg"
)

// mjpegStream fans encoded frames out to any number of subscribers.
// Slow subscribers miss frames rather than holding up the frame loop.
type mjpegStream struct {
	lock sync.RWMutex
	subs map[chan []byte]struct{}
}

func newMJPEGStream() *mjpegStream {
	return &mjpegStream{subs: make(map[chan []byte]struct{})}
}

func (ms *mjpegStream) Subscribe() chan []byte {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ch := make(chan []byte, 1)
	ms.subs[ch] = struct{}{}
	glog.V(1).Infof("subscriber added, %d total", len(ms.subs))
	return ch
}

func (ms *mjpegStream) Unsubscribe(ch chan []byte) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	if _, ok := ms.subs[ch]; ok {
		delete(ms.subs, ch)
		close(ch)
	}
	glog.V(1).Infof("subscriber removed, %d total", len(ms.subs))
}

func (ms *mjpegStream) Subscribers() int {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	return len(ms.subs)
}

func (ms *mjpegStream) Publish(image []byte) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	for ch := range ms.subs {
		select {
		case ch <- image:
		default:
		}
	}
}

func (ms *mjpegStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	glog.Infof("stream connect from %s", r.RemoteAddr)
	mjpg := ms.Subscribe()
	defer ms.Unsubscribe(mjpg)

	multipartWriter := multipart.NewWriter(w)
	w.Header().Set("Content-Type", `multipart/x-mixed-replace;boundary=`+multipartWriter.Boundary())
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		var image []byte
		select {
		case image = <-mjpg:
		case <-r.Context().Done():
			return
		}
		iw, err := multipartWriter.CreatePart(textproto.MIMEHeader{
			"Content-type":   []string{"image/jpeg"},
			"Content-length": []string{strconv.Itoa(len(image))},
		})
		if err != nil {
			glog.V(1).Info(err)
			return
		}
		if _, err = iw.Write(image); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// record writes every published frame into an AVI file until ctx is
// done, returning the number of frames written.
func (ms *mjpegStream) record(ctx context.Context, fn string, w, h, fps int) (int, error) {
	count := 0

	aw, err := mjpeg.New(fn, int32(w), int32(h), int32(fps))
	if err != nil {
		return count, err
	}

	mjpg := ms.Subscribe()
	defer ms.Unsubscribe(mjpg)

	for {
		select {
		case image := <-mjpg:
			if err := aw.AddFrame(image); err != nil {
				aw.Close()
				return count, err
			}
			count++
		case <-ctx.Done():
			return count, aw.Close()
		}
	}
}
