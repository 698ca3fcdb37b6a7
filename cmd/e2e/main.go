package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var verbose bool

// scenario 封装一次跨三个服务的端到端巡检所共享的资源。
type scenario struct {
	client    *http.Client
	lostFound string
	auction   string
	auth      string
	token     string
}

func banner(title string) {
	log.Printf("\n=== %s ===", title)
}

func step(format string, args ...interface{}) {
	log.Printf(" • "+format, args...)
}

type idOnly struct {
	ID uint64 `json:"id"`
}

type tokenSet struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type match struct {
	FoundItem struct {
		ID   uint64 `json:"id"`
		Name string `json:"name"`
	} `json:"found_item"`
	SimilarityPercent float64 `json:"similarity_percent"`
}

type auctionInfo struct {
	ID               uint64  `json:"id"`
	CurrentPrice     float64 `json:"current_price"`
	Status           string  `json:"status"`
	WinnerExternalID string  `json:"winner_external_id"`
	IsActive         bool    `json:"is_active"`
}

func main() {
	var (
		lostFound string
		auction   string
		auth      string
		username  string
		password  string
		timeout   time.Duration
	)

	flag.StringVar(&lostFound, "lostfound", "http://127.0.0.1:8000", "Base URL of the lost_found service")
	flag.StringVar(&auction, "auction", "http://127.0.0.1:8002", "Base URL of the auction service")
	flag.StringVar(&auth, "auth", "http://127.0.0.1:8001", "Base URL of the auth service")
	flag.StringVar(&username, "username", "e2e_user", "Username prefix to register for the e2e run")
	flag.StringVar(&password, "password", "P@ssw0rd9", "Password for the e2e user")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "HTTP timeout for requests")
	flag.BoolVar(&verbose, "v", true, "Verbose logging")
	flag.Parse()

	sc := &scenario{
		client:    &http.Client{Timeout: timeout},
		lostFound: strings.TrimRight(lostFound, "/"),
		auction:   strings.TrimRight(auction, "/"),
		auth:      strings.TrimRight(auth, "/"),
	}
	sc.run(username, password)
}

func (s *scenario) run(usernamePrefix, password string) {
	must := func(err error, msg string) {
		if err != nil {
			log.Fatalf("%s: %v", msg, err)
		}
	}

	banner("Health Checks")
	for _, base := range []string{s.lostFound, s.auction, s.auth} {
		step("Probe %s/healthz", base)
		must(s.do("GET", base+"/healthz", nil, 200, nil), "healthz")
		step("Probe %s/metrics", base)
		must(s.do("GET", base+"/metrics", nil, 200, nil), "metrics")
	}

	banner("Account & Token")
	uname := fmt.Sprintf("%s_%s", usernamePrefix, strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	step("Register %s", uname)
	must(s.do("POST", s.auth+"/users/register", map[string]string{"username": uname, "password": password}, 201, nil), "register")
	step("Register again (expect 400)")
	must(s.do("POST", s.auth+"/users/register", map[string]string{"username": uname, "password": password}, 400, nil), "duplicate register")
	var tok tokenSet
	step("POST /auth/token (form)")
	must(s.form(s.auth+"/auth/token", url.Values{"username": {uname}, "password": {password}}, 200, &tok), "token")
	if tok.AccessToken == "" || !strings.EqualFold(tok.TokenType, "bearer") {
		log.Fatalf("invalid token response: %+v", tok)
	}
	s.token = tok.AccessToken
	step("GET /auth/verify")
	must(s.do("GET", s.auth+"/auth/verify", nil, 200, nil), "verify")

	banner("Catalog")
	var cat, tag idOnly
	step("Create category")
	must(s.do("POST", s.lostFound+"/categories", map[string]string{"name": "E2E " + uname, "description": "e2e"}, 201, &cat), "create category")
	step("Create tag")
	must(s.do("POST", s.lostFound+"/tags", map[string]string{"name": "e2e-" + uname}, 201, &tag), "create tag")

	banner("Items & Similarity")
	var lost idOnly
	step("Create lost item")
	must(s.do("POST", s.lostFound+"/lost_items", map[string]any{
		"category_id": cat.ID, "name": "Black Samsung phone", "description": "Galaxy S21 in a black case", "location": "Central Station",
	}, 201, &lost), "create lost item")
	step("Attach tag to lost item")
	must(s.do("POST", fmt.Sprintf("%s/lost_items/%d/tags?tag_id=%d", s.lostFound, lost.ID, tag.ID), nil, 200, nil), "attach tag")
	for _, name := range []string{"Samsung Galaxy", "iPhone 12", "Black umbrella"} {
		step("Create found item %q", name)
		must(s.do("POST", s.lostFound+"/found_items", map[string]any{"category_id": cat.ID, "name": name, "location": "Central Station"}, 201, nil), "create found item")
	}
	var matches []match
	step("GET similar_found_items top_k=2")
	must(s.do("GET", fmt.Sprintf("%s/lost_items/%d/similar_found_items?top_k=2", s.lostFound, lost.ID), nil, 200, &matches), "similar")
	if len(matches) == 0 || len(matches) > 2 {
		log.Fatalf("unexpected match count %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].SimilarityPercent > matches[i-1].SimilarityPercent {
			log.Fatalf("matches not sorted: %+v", matches)
		}
	}
	step("top_k=0 (expect 400)")
	must(s.do("GET", fmt.Sprintf("%s/lost_items/%d/similar_found_items?top_k=0", s.lostFound, lost.ID), nil, 400, nil), "similar top_k=0")

	banner("Auction & Bids")
	var a auctionInfo
	step("Create auction for lost item %d", lost.ID)
	must(s.do("POST", s.auction+"/auctions", map[string]any{"lost_item_external_id": fmt.Sprint(lost.ID), "start_price": 10}, 201, &a), "create auction")
	step("Create second auction (expect 409)")
	must(s.do("POST", s.auction+"/auctions", map[string]any{"lost_item_external_id": fmt.Sprint(lost.ID), "start_price": 10}, 409, nil), "duplicate auction")
	step("Create auction for unknown lost item (expect 400)")
	must(s.do("POST", s.auction+"/auctions", map[string]any{"lost_item_external_id": "999999999", "start_price": 10}, 400, nil), "unknown lost item")
	step("Bid 15")
	must(s.do("POST", fmt.Sprintf("%s/auctions/%d/bids", s.auction, a.ID), map[string]any{"amount": 15}, 201, nil), "bid")
	step("Bid 12 (expect 400)")
	must(s.do("POST", fmt.Sprintf("%s/auctions/%d/bids", s.auction, a.ID), map[string]any{"amount": 12}, 400, nil), "low bid")
	step("Close auction")
	must(s.do("POST", fmt.Sprintf("%s/auctions/%d/close", s.auction, a.ID), nil, 200, &a), "close")
	if a.Status != "finished" || a.IsActive || a.WinnerExternalID != uname {
		log.Fatalf("unexpected closed auction: %+v", a)
	}

	banner("Cleanup & Logout")
	step("Delete lost item")
	must(s.do("DELETE", fmt.Sprintf("%s/lost_items/%d", s.lostFound, lost.ID), nil, 200, nil), "delete lost item")
	step("POST /auth/logout")
	must(s.do("POST", s.auth+"/auth/logout", nil, 200, nil), "logout")
	step("GET /auth/verify after logout (expect 401 when redis is enabled)")
	_ = s.do("GET", s.auth+"/auth/verify", nil, 401, nil)

	log.Printf("\nE2E OK (user=%s, auction=%d)\n", uname, a.ID)
}

func (s *scenario) do(method, urlStr string, body any, want int, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
		if verbose {
			log.Printf("%s %s\n请求体: %s", method, urlStr, string(b))
		}
	}
	req, err := http.NewRequest(method, urlStr, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(req, want, out)
}

func (s *scenario) form(urlStr string, form url.Values, want int, out any) error {
	req, err := http.NewRequest("POST", urlStr, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return s.send(req, want, out)
}

func (s *scenario) send(req *http.Request, want int, out any) error {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: status %d, want %d, body: %s", req.Method, req.URL, resp.StatusCode, want, safeTrunc(string(b), 800))
	}
	if verbose {
		log.Printf("%s %s -> %d\n响应体: %s", req.Method, req.URL, resp.StatusCode, safeTrunc(string(b), 1200))
	}
	if out != nil {
		return json.Unmarshal(b, out)
	}
	return nil
}

func safeTrunc(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
