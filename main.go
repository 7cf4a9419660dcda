package main // import "github.com/tcolgate/kinectrail"

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang/glog"
)

func main() {
	dev := flag.String("d", "/dev/video1", "kinect depth device to use")
	colorDev := flag.String("c", "", "color video device to use, default none")
	playback := flag.String("playback", "", "play depth frames from a directory instead of a device")
	addr := flag.String("l", ":8080", "addr to listen")
	fps := flag.Int("fps", 60, "target frame rate")
	contours := flag.String("contours", "cv", "contour finder, cv or cocos")
	bg := flag.Bool("bg", false, "mask out static scenery with a background model")
	rec := flag.String("rec", "", "record the output to this AVI file")
	printFPS := flag.Bool("p", false, "print fps info")
	flag.Parse()
	defer glog.Flush()

	if *fps <= 0 {
		glog.Fatalf("invalid frame rate %d", *fps)
	}

	cfg := config{background: *bg}
	switch *contours {
	case "cv":
		cfg.finder = cvContourFinder{}
	case "cocos":
		cfg.finder = cocosContourFinder{}
	default:
		glog.Fatalf("unknown contour finder %q", *contours)
	}

	var s depthSensor
	if *playback != "" {
		s = newPlaybackSensor(*playback, 30)
	} else {
		s = newKinectCam(*dev, *colorDev)
	}

	a := newApp(s, cfg)
	if err := a.setup(); err != nil {
		glog.Fatalf("setup failed, %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream := newMJPEGStream()
	recording := make(chan struct{})
	if *rec != "" {
		go func() {
			defer close(recording)
			n, err := stream.record(ctx, *rec, canvasW, canvasH, *fps)
			if err != nil {
				glog.Errorf("recording to %s failed after %d frames, %v", *rec, n, err)
				return
			}
			glog.Infof("recorded %d frames to %s", n, *rec)
		}()
	} else {
		close(recording)
	}

	http.Handle("/", indexHandler())
	http.Handle("/stream", stream)
	http.Handle("/key", keyHandler(a))
	http.Handle("/drag", dragHandler(a))
	http.Handle("/debug/blobs", a.blobs)
	if a.bg != nil {
		http.Handle("/sigmadelta/", http.StripPrefix("/sigmadelta", sigmaDeltaHandler(a)))
	}

	srv := &http.Server{Addr: *addr}
	go func() {
		glog.Infof("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			glog.Fatal(err)
		}
	}()

	run(ctx, a, stream, time.Second/time.Duration(*fps), *printFPS)

	shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	srv.Shutdown(shutdown)
	<-recording

	if err := a.exit(); err != nil {
		glog.Errorf("closing sensor, %v", err)
	}
}

// run is the frame loop, standing in for the host application's
// update and draw callbacks.
func run(ctx context.Context, a *app, stream *mjpegStream, interval time.Duration, printFPS bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	var fr int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		a.update()
		img := a.draw()

		if stream.Subscribers() > 0 {
			buf, err := encodeJPEG(img)
			if err != nil {
				glog.Errorf("encoding frame, %v", err)
				continue
			}
			stream.Publish(buf)
		}

		// print framerate info every 10 seconds
		fr++
		if printFPS {
			if d := time.Since(start); d > time.Second*10 {
				fmt.Println(float64(fr)/d.Seconds(), "fps")
				start = time.Now()
				fr = 0
			}
		}
	}
}

func encodeJPEG(img image.Image) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func indexHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page)
	})
}

func keyHandler(a *app) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		k := r.FormValue("k")
		if !a.keyPressed(k) {
			http.Error(w, fmt.Sprintf("unknown key %q", k), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func dragHandler(a *app) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		dx, xerr := strconv.ParseFloat(r.FormValue("dx"), 64)
		dy, yerr := strconv.ParseFloat(r.FormValue("dy"), 64)
		if xerr != nil || yerr != nil {
			http.Error(w, "couldn't parse dx, dy", http.StatusBadRequest)
			return
		}
		a.mouseDragged(dx, dy)
		w.WriteHeader(http.StatusNoContent)
	})
}

// sigmaDeltaHandler serves the current background model, which is
// replaced when the sensor resolution changes.
func sigmaDeltaHandler(a *app) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.Lock()
		sd := a.bg
		a.Unlock()
		sd.ServeHTTP(w, r)
	})
}
