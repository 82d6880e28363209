package viz

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

type ImageContainer struct {
	name string
	data []byte
}

type Producer interface {
	Name() string
	GetImage() (*ImageContainer, error)
	AddPlotOption(opt PlotOptions)
}

// Server renders registered producers to PNG and serves them. Images are
// only rendered for buckets viewed within the last viewTimeout.
type Server struct {
	images          map[string]map[string]*ImageContainer
	mu              sync.RWMutex
	srv             *http.Server
	producerBuckets map[string]map[string]Producer
	updateInterval  time.Duration
	enabled         bool
	lastViewed      map[string]time.Time
}

const (
	viewTimeout           = time.Second
	defaultUpdateInterval = 500 * time.Millisecond
)

func NewServer(port int, updateInterval time.Duration) *Server {
	if updateInterval <= 0 {
		updateInterval = defaultUpdateInterval
	}
	s := &Server{
		images:          make(map[string]map[string]*ImageContainer),
		producerBuckets: make(map[string]map[string]Producer),
		lastViewed:      make(map[string]time.Time),
		srv:             &http.Server{Addr: fmt.Sprintf(":%d", port)},
		updateInterval:  updateInterval,
		enabled:         true,
	}
	s.srv.Handler = s.Handler()
	return s
}

func (s *Server) Enable(enable bool) {
	s.mu.Lock()
	s.enabled = enable
	s.mu.Unlock()
}

func (s *Server) Register(key string, p Producer) {
	s.mu.Lock()
	bucket, ok := s.producerBuckets[key]
	if !ok {
		bucket = make(map[string]Producer)
		s.producerBuckets[key] = bucket
	}
	bucket[p.Name()] = p
	s.mu.Unlock()
}

func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

// Render refreshes the images of every recently viewed bucket.
func (s *Server) Render() {
	s.mu.RLock()
	if !s.enabled {
		s.mu.RUnlock()
		return
	}
	var producers []struct {
		bucket string
		p      Producer
	}
	for bucketName, bucket := range s.producerBuckets {
		if time.Since(s.lastViewed[bucketName]) >= viewTimeout {
			continue
		}
		for _, p := range bucket {
			producers = append(producers, struct {
				bucket string
				p      Producer
			}{bucketName, p})
		}
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, item := range producers {
		wg.Add(1)
		go func(bucket string, p Producer) {
			defer wg.Done()

			img, err := p.GetImage()
			if err != nil {
				log.Warn().Err(err).Str("plot", p.Name()).Msg("error rendering plot")
				return
			}
			if img == nil {
				return
			}

			s.mu.Lock()
			mb, ok := s.images[bucket]
			if !ok {
				mb = make(map[string]*ImageContainer)
				s.images[bucket] = mb
			}
			mb[img.name] = img
			s.mu.Unlock()
		}(item.bucket, item.p)
	}
	wg.Wait()
}

func (s *Server) markViewed(bucket string) {
	s.mu.Lock()
	s.lastViewed[bucket] = time.Now()
	s.mu.Unlock()
}

func (s *Server) Handler() http.Handler {
	handler := httprouter.New()
	handler.GET("/", s.handleIndex)
	handler.GET("/view/:bucket", s.handleView)
	handler.GET("/img/:bucket/:img", s.handleImage)
	return handler
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.producerBuckets))
	for name := range s.producerBuckets {
		keys = append(keys, name)
	}
	s.mu.RUnlock()

	if len(keys) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	sort.Strings(keys)

	w.Header().Set("Location", "/view/"+url.PathEscape(keys[0]))
	w.WriteHeader(http.StatusFound)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	bucket := params.ByName("bucket")

	s.mu.RLock()
	itemsForBucket, ok := s.producerBuckets[bucket]
	buckets := make([]string, 0, len(s.producerBuckets))
	for key := range s.producerBuckets {
		buckets = append(buckets, key)
	}
	names := make([]string, 0, len(itemsForBucket))
	for key := range itemsForBucket {
		names = append(names, key)
	}
	s.mu.RUnlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.markViewed(bucket)

	sort.Strings(buckets)
	sort.Strings(names)

	w.Header().Add("Content-Type", "text/html")
	fmt.Fprint(w, `<html><head><title>Museband</title></head>`)
	fmt.Fprintf(w, `
		<script type="text/javascript">
			var toggleRefresh = true;
			function toggleOn() {
				toggleRefresh = !toggleRefresh;
			}

			function changeBucket() {
				var val = document.getElementById('bucketSelector').value;
				window.location.href = '/view/' + val;
			}
			window.onload = function() {
				for (var i = 0; i < %d; i++) {
					var img = document.getElementById('graph-' + i);
					setInterval(function(image) {
						if (toggleRefresh) {
							image.src = image.src.split("?")[0] + "?" + new Date().getTime();
						}
					}, %d, img);
				}
			}
		</script>`, len(names), s.updateInterval.Milliseconds())
	fmt.Fprint(w, `<body style='background-color: black'>`)

	fmt.Fprint(w, `<select id="bucketSelector" onchange="changeBucket()">`)
	for _, bucketName := range buckets {
		selected := ""
		if bucketName == bucket {
			selected = " selected"
		}
		fmt.Fprintf(w, `<option value="%s"%s>%s</option>`, bucketName, selected, bucketName)
	}
	fmt.Fprint(w, `</select>`)
	fmt.Fprint(w, `<button onclick="toggleOn()">Refresh?</button>`)

	fmt.Fprint(w, `<div style="display: flex; flex-direction: column">`)
	for idx, key := range names {
		fmt.Fprintf(w, `<div><img id="graph-%d" src="/img/%s/%s?%d" /></div>`, idx, bucket, key, time.Now().UnixMicro())
	}
	fmt.Fprint(w, `</div></body></html>`)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	bucketName := params.ByName("bucket")
	s.markViewed(bucketName)

	s.mu.RLock()
	img, ok := s.images[bucketName][params.ByName("img")]
	s.mu.RUnlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Add("Content-Type", "image/png")
	w.Write(img.data)
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		ticker := time.NewTicker(s.updateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Render()
			}
		}
	}()

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
