package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/austinkregel/rune-musicd/internal/audio"
	"github.com/austinkregel/rune-musicd/internal/auth"
	"github.com/austinkregel/rune-musicd/internal/catalog"
	"github.com/austinkregel/rune-musicd/internal/config"
	"github.com/austinkregel/rune-musicd/internal/engine"
	"github.com/austinkregel/rune-musicd/internal/media"
	"github.com/austinkregel/rune-musicd/internal/queue"
	"github.com/austinkregel/rune-musicd/internal/scanner"
	"github.com/austinkregel/rune-musicd/internal/search"
)

// trackMeta is what the server remembers about a playlist entry beyond
// what the Engine tracks (TrackID + path): display metadata handed in
// by the client on a queue/play request. The Engine's Item is
// deliberately narrower, so this lives one layer up.
type trackMeta struct {
	path string
	meta *TrackMetadata
}

// Server handles IPC communication with clients. Playback state is no
// longer owned here: that is the Engine's job. The Server's role is to
// translate the wire protocol into Engine commands, and Engine/Analyzer
// events into wire pushes and OS media-session updates.
type Server struct {
	socketPath   string
	authManager  *auth.Manager
	configMgr    *config.Manager
	eng          *engine.Engine
	opener       *audio.TrackOpener
	queueMgr     *queue.Manager
	mediaSession media.Session
	libScanner   *scanner.Scanner
	catalogDB    *catalog.DB
	searchIdx    *search.Index

	listener net.Listener
	mu       sync.Mutex
	clients  map[net.Conn]struct{}

	audioSubsMu sync.RWMutex
	audioSubs   map[net.Conn]bool

	metaMu     sync.Mutex
	nextID     int32
	trackMetas map[int32]*trackMeta

	statusMu sync.RWMutex
	status   StatusResponse

	indexedMu sync.Mutex
	indexed   bool // guards one-shot catalog/search population after a scan

	lastBandsMu sync.RWMutex
	lastBands   []int
}

// NewServer creates a new IPC server wired to the Engine rather than a
// direct audio player.
func NewServer(
	socketPath string,
	authManager *auth.Manager,
	configMgr *config.Manager,
	eng *engine.Engine,
	opener *audio.TrackOpener,
	queueMgr *queue.Manager,
	mediaSession media.Session,
	catalogDB *catalog.DB,
	searchIdx *search.Index,
) (*Server, error) {
	s := &Server{
		socketPath:   socketPath,
		authManager:  authManager,
		configMgr:    configMgr,
		eng:          eng,
		opener:       opener,
		queueMgr:     queueMgr,
		mediaSession: mediaSession,
		libScanner:   scanner.NewScanner(),
		catalogDB:    catalogDB,
		searchIdx:    searchIdx,
		clients:      make(map[net.Conn]struct{}),
		audioSubs:    make(map[net.Conn]bool),
		trackMetas:   make(map[int32]*trackMeta),
		status:       StatusResponse{State: "Stopped"},
	}

	mediaSession.SetCommandHandler(media.CommandHandlerFunc(s.onMediaCommand))

	return s, nil
}

// onMediaCommand translates an OS media-session command into an Engine
// command, implementing media.CommandHandler.
func (s *Server) onMediaCommand(cmd media.Command, data interface{}) error {
	switch cmd {
	case media.CmdPlay:
		s.sendCmd(engine.Command{Kind: engine.CmdPlay})
	case media.CmdPause:
		s.sendCmd(engine.Command{Kind: engine.CmdPause})
	case media.CmdPlayPause:
		if s.cachedStatus().State == "Playing" {
			s.sendCmd(engine.Command{Kind: engine.CmdPause})
		} else {
			s.sendCmd(engine.Command{Kind: engine.CmdPlay})
		}
	case media.CmdStop:
		s.sendCmd(engine.Command{Kind: engine.CmdStop})
	case media.CmdNext:
		log.Printf("[QUEUE] Next track requested via OS media controls")
		s.sendCmd(engine.Command{Kind: engine.CmdNext})
	case media.CmdPrevious:
		log.Printf("[QUEUE] Previous track requested via OS media controls")
		s.sendCmd(engine.Command{Kind: engine.CmdPrevious})
	case media.CmdSeek:
		if pos, ok := data.(time.Duration); ok {
			s.sendCmd(engine.Command{Kind: engine.CmdSeek, Seconds: pos.Seconds()})
		}
	case media.CmdSetShuffle:
		if enabled, ok := data.(bool); ok {
			log.Printf("[QUEUE] Shuffle toggled via OS media controls: %v", enabled)
			s.queueMgr.SetShuffle(enabled)
		}
	case media.CmdSetLoopStatus:
		if status, ok := data.(media.LoopStatus); ok {
			log.Printf("[QUEUE] Loop status changed via OS media controls: %s", status)
			var mode queue.RepeatMode
			switch status {
			case media.LoopTrack:
				mode = queue.RepeatOne
			case media.LoopPlaylist:
				mode = queue.RepeatAll
			default:
				mode = queue.RepeatOff
			}
			s.queueMgr.SetRepeat(mode)
		}
	}
	return nil
}

// sendCmd enqueues a command on the Engine's command channel.
func (s *Server) sendCmd(cmd engine.Command) {
	s.eng.Commands() <- cmd
}

// RunEventLoop consumes Engine events for the lifetime of ctx, updating
// cached status, the OS media session, and audio-data subscribers. It
// must run on its own goroutine alongside Engine.Run.
func (s *Server) RunEventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-s.eng.Events():
			if !ok {
				return
			}
			s.onEvent(evt)
		}
	}
}

func (s *Server) onEvent(evt engine.Event) {
	if evt.Kind == engine.EvtRealtimeFFT {
		s.pushAudioData(evt.Spectrum)
		return
	}
	if evt.Kind == engine.EvtPlaylistUpdated {
		s.pushPlaylistUpdated(evt.IDs)
		return
	}

	meta := s.lookupMeta(evt.ID)

	s.statusMu.Lock()
	lastPlayedPath := s.status.Path
	switch evt.Kind {
	case engine.EvtPlaying:
		s.status.State = "Playing"
		s.status.Path = evt.Path
		s.status.Position = evt.Position.Milliseconds()
		if meta != nil && meta.ArtPath == "" {
			meta.ArtPath = audio.FindAlbumArt(evt.Path)
		}
		s.status.Metadata = meta
		if meta != nil {
			s.status.Duration = meta.Duration
		}
	case engine.EvtPaused:
		s.status.State = "Paused"
		s.status.Position = evt.Position.Milliseconds()
	case engine.EvtProgress:
		s.status.Position = evt.Position.Milliseconds()
	case engine.EvtStopped, engine.EvtEndOfPlaylist:
		s.status.State = "Stopped"
		s.status.Position = 0
	case engine.EvtEndOfTrack:
		// transitional; the Engine follows with Playing or Stopped.
	case engine.EvtError:
		log.Printf("[ENGINE] error on track id=%d index=%d: %s", evt.ID, evt.Index, evt.Message)
	}
	s.status.QueueIndex = s.eng.Cursor().Index
	s.status.QueueSize = len(s.eng.Playlist())
	s.statusMu.Unlock()

	if evt.Kind == engine.EvtPlaying {
		s.queueMgr.AddToRecentlyPlayed(evt.Path)
	}
	if evt.Kind == engine.EvtEndOfPlaylist {
		s.tryContinuePlayback(lastPlayedPath)
	}

	s.updateMediaSession(evt, meta)
}

// tryContinuePlayback appends a similarity-picked follow-up track once
// the playlist runs dry, if continue mode is enabled and the feature
// store has a candidate. lastPath is the track that just finished.
func (s *Server) tryContinuePlayback(lastPath string) {
	next := s.queueMgr.TryGetSimilarTrack(lastPath)
	if next == "" {
		return
	}

	index := len(s.eng.Playlist())
	id := s.assignTrackID(next, nil)
	log.Printf("[QUEUE] Continue mode: appending similar track %s", next)
	s.sendCmd(engine.Command{Kind: engine.CmdAddToPlaylist, TrackID: id, FilePath: next})
	s.sendCmd(engine.Command{Kind: engine.CmdSwitch, Index: index})
}

func (s *Server) updateMediaSession(evt engine.Event, meta *TrackMetadata) {
	switch evt.Kind {
	case engine.EvtPlaying:
		if meta != nil {
			_ = s.mediaSession.UpdateMetadata(media.Metadata{
				Title:    meta.Title,
				Artist:   meta.Artist,
				Album:    meta.Album,
				Duration: time.Duration(meta.Duration) * time.Millisecond,
				ArtPath:  meta.ArtPath,
			})
		}
		_ = s.mediaSession.UpdatePlaybackState(media.StatePlaying, evt.Position)
	case engine.EvtPaused:
		_ = s.mediaSession.UpdatePlaybackState(media.StatePaused, evt.Position)
	case engine.EvtProgress:
		_ = s.mediaSession.UpdatePlaybackState(media.StatePlaying, evt.Position)
	case engine.EvtStopped, engine.EvtEndOfPlaylist:
		_ = s.mediaSession.UpdatePlaybackState(media.StateStopped, 0)
	}
}

func (s *Server) cachedStatus() StatusResponse {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Server) lookupMeta(id int32) *TrackMetadata {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	if tm, ok := s.trackMetas[id]; ok {
		return tm.meta
	}
	return nil
}

func (s *Server) assignTrackID(path string, meta *TrackMetadata) int32 {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	s.nextID++
	id := s.nextID
	s.trackMetas[id] = &trackMeta{path: path, meta: meta}
	return id
}

// Start starts the IPC server
func (s *Server) Start(ctx context.Context) error {
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	log.Printf("[IPC] Creating socket at %s", s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("[IPC] Server listening, waiting for connections...")

	go s.acceptLoop(ctx)

	<-ctx.Done()

	log.Printf("[IPC] Shutting down server...")

	s.mu.Lock()
	clientCount := len(s.clients)
	for conn := range s.clients {
		conn.Close()
	}
	s.mu.Unlock()

	log.Printf("[IPC] Closed %d client connections", clientCount)

	listener.Close()
	os.RemoveAll(s.socketPath)

	log.Printf("[IPC] Server stopped")

	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Printf("[IPC] Accept error: %v", err)
				continue
			}
		}

		remoteAddr := conn.RemoteAddr().String()
		log.Printf("[IPC] New client connection from %s", remoteAddr)

		s.mu.Lock()
		s.clients[conn] = struct{}{}
		clientCount := len(s.clients)
		s.mu.Unlock()

		log.Printf("[IPC] Active clients: %d", clientCount)

		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()

	defer func() {
		log.Printf("[IPC] Client disconnected: %s", remoteAddr)
		conn.Close()
		s.mu.Lock()
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.mu.Unlock()
		s.audioSubsMu.Lock()
		delete(s.audioSubs, conn)
		s.audioSubsMu.Unlock()
		log.Printf("[IPC] Active clients: %d", clientCount)
	}()

	reader := bufio.NewReader(conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				log.Printf("[IPC] Read error from %s: %v", remoteAddr, err)
			}
			return
		}

		req, err := DecodeRequest(line)
		if err != nil {
			log.Printf("[IPC] Invalid request format from %s: %v", remoteAddr, err)
			s.sendError(conn, "invalid request format")
			continue
		}

		isPollingCmd := req.Cmd == CmdStatus || req.Cmd == CmdGetScanStatus || req.Cmd == CmdGetAudioData

		if !isPollingCmd {
			log.Printf("[IPC] Command: %s", req.Cmd)
		}

		resp := s.handleRequest(ctx, conn, req)

		if !isPollingCmd {
			if resp.Success {
				log.Printf("[IPC] Response: success")
			} else {
				log.Printf("[IPC] Response: error=%q", resp.Error)
			}
		}

		if err := s.sendResponse(conn, resp); err != nil {
			log.Printf("[IPC] Send error to %s: %v", remoteAddr, err)
			return
		}
	}
}

func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

func (s *Server) handleRequest(ctx context.Context, conn net.Conn, req *Request) *Response {
	start := time.Now()
	RequestLogger(req)
	resp := s.dispatchRequest(ctx, conn, req)
	ResponseLogger(resp, time.Since(start))
	return resp
}

func (s *Server) dispatchRequest(ctx context.Context, conn net.Conn, req *Request) *Response {
	if req.Cmd == CmdPair {
		return s.handlePair(req)
	}

	if !s.authManager.ValidateToken(req.Token) {
		return NewErrorResponse("unauthorized")
	}

	switch req.Cmd {
	case CmdPlay:
		return s.handlePlay(req)
	case CmdPause:
		return s.handlePause()
	case CmdResume:
		return s.handleResume()
	case CmdStop:
		return s.handleStop()
	case CmdNext:
		return s.handleNext()
	case CmdPrev:
		return s.handlePrev()
	case CmdQueue:
		return s.handleQueue(req)
	case CmdSeek:
		return s.handleSeek(req)
	case CmdVolume:
		return s.handleVolume(req)
	case CmdStatus:
		return s.handleStatus()
	case CmdGetConfig:
		return s.handleGetConfig()
	case CmdSetConfig:
		return s.handleSetConfig(req)
	case CmdScanLibrary:
		return s.handleScanLibrary(ctx)
	case CmdGetScanStatus:
		return s.handleGetScanStatus()
	case CmdGetQueue:
		return s.handleGetQueue()
	case CmdSetRepeat:
		return s.handleSetRepeat(req)
	case CmdSetShuffle:
		return s.handleSetShuffle(req)
	case CmdQueueJump:
		return s.handleQueueJump(req)
	case CmdQueueRemove:
		return s.handleQueueRemove(req)
	case CmdQueueMove:
		return s.handleQueueMove(req)
	case CmdSetContinueMode:
		return s.handleSetContinueMode(req)
	case CmdGetAudioData:
		return s.handleGetAudioData()
	case CmdSubscribeAudioData:
		return s.handleSubscribeAudioData(conn)
	case CmdUnsubscribeAudioData:
		return s.handleUnsubscribeAudioData(conn)
	default:
		return NewErrorResponse("unknown command")
	}
}

func (s *Server) handlePair(req *Request) *Response {
	var pairReq PairRequest
	if req.Data != nil {
		if err := json.Unmarshal(req.Data, &pairReq); err != nil {
			return NewErrorResponse("invalid pair request")
		}
	}

	log.Printf("[AUTH] Pairing request from client: %q", pairReq.ClientName)

	token, clientID, requiresApproval, err := s.authManager.Pair(pairReq.ClientName)
	if err != nil {
		log.Printf("[AUTH] Pairing failed: %v", err)
		return NewErrorResponse(err.Error())
	}

	log.Printf("[AUTH] Paired client %s (ID: %s, approval required: %v)", pairReq.ClientName, clientID, requiresApproval)

	resp, err := NewSuccessResponse(PairResponse{
		Token:            token,
		ClientID:         clientID,
		RequiresApproval: requiresApproval,
	})
	if err != nil {
		return NewErrorResponse("internal error")
	}

	return resp
}

// findOrAppend locates path in the Engine's current playlist, or
// appends it (assigning a fresh track id carrying metadata) if absent.
// It returns the playlist index to switch to.
func (s *Server) findOrAppend(path string, metadata *TrackMetadata) int {
	playlist := s.eng.Playlist()
	for i, item := range playlist {
		if item.FilePath == path {
			return i
		}
	}
	id := s.assignTrackID(path, metadata)
	s.sendCmd(engine.Command{Kind: engine.CmdAddToPlaylist, TrackID: id, FilePath: path})
	return len(playlist)
}

func (s *Server) handlePlay(req *Request) *Response {
	var playReq PlayRequest
	if err := json.Unmarshal(req.Data, &playReq); err != nil {
		log.Printf("[PLAYER] Invalid play request: %v", err)
		return NewErrorResponse("invalid play request")
	}

	if playReq.Path == "" {
		log.Printf("[PLAYER] Play request missing path")
		return NewErrorResponse("path is required")
	}

	log.Printf("[PLAYER] Play request: %s", playReq.Path)

	index := s.findOrAppend(playReq.Path, playReq.Metadata)
	s.sendCmd(engine.Command{Kind: engine.CmdSwitch, Index: index})

	log.Printf("[PLAYER] Switching to: %s", playReq.Path)
	return s.handleStatus()
}

func (s *Server) handlePause() *Response {
	log.Printf("[PLAYER] Pause requested")
	s.sendCmd(engine.Command{Kind: engine.CmdPause})
	return s.handleStatus()
}

func (s *Server) handleResume() *Response {
	log.Printf("[PLAYER] Resume requested")
	s.sendCmd(engine.Command{Kind: engine.CmdPlay})
	return s.handleStatus()
}

func (s *Server) handleStop() *Response {
	log.Printf("[PLAYER] Stop requested")
	s.sendCmd(engine.Command{Kind: engine.CmdStop})
	return s.handleStatus()
}

func (s *Server) handleNext() *Response {
	log.Printf("[PLAYER] Next track requested")
	s.sendCmd(engine.Command{Kind: engine.CmdNext})
	return s.handleStatus()
}

func (s *Server) handlePrev() *Response {
	log.Printf("[PLAYER] Previous track requested")
	s.sendCmd(engine.Command{Kind: engine.CmdPrevious})
	return s.handleStatus()
}

func (s *Server) handleQueue(req *Request) *Response {
	var queueReq QueueRequest
	if err := json.Unmarshal(req.Data, &queueReq); err != nil {
		return NewErrorResponse("invalid queue request")
	}

	log.Printf("[QUEUE] Queue request: %d items, append=%v", len(queueReq.Items), queueReq.Append)

	if !queueReq.Append {
		s.sendCmd(engine.Command{Kind: engine.CmdClearPlaylist})
	}

	for _, item := range queueReq.Items {
		id := s.assignTrackID(item.Path, item.Metadata)
		s.sendCmd(engine.Command{Kind: engine.CmdAddToPlaylist, TrackID: id, FilePath: item.Path})
	}

	log.Printf("[QUEUE] Submitted %d tracks to playlist", len(queueReq.Items))
	return s.handleStatus()
}

func (s *Server) handleSeek(req *Request) *Response {
	var seekReq SeekRequest
	if err := json.Unmarshal(req.Data, &seekReq); err != nil {
		return NewErrorResponse("invalid seek request")
	}

	log.Printf("[PLAYER] Seek to position: %dms", seekReq.Position)
	s.sendCmd(engine.Command{Kind: engine.CmdSeek, Seconds: float64(seekReq.Position) / 1000})

	return s.handleStatus()
}

func (s *Server) handleVolume(req *Request) *Response {
	var volReq VolumeRequest
	if err := json.Unmarshal(req.Data, &volReq); err != nil {
		return NewErrorResponse("invalid volume request")
	}

	log.Printf("[PLAYER] Set volume to: %.2f", volReq.Level)
	s.opener.SetVolume(volReq.Level)

	return s.handleStatus()
}

func (s *Server) handleStatus() *Response {
	status := s.cachedStatus()

	repeatMode := "off"
	switch s.queueMgr.GetRepeat() {
	case queue.RepeatOne:
		repeatMode = "one"
	case queue.RepeatAll:
		repeatMode = "all"
	}
	status.RepeatMode = repeatMode
	status.Shuffle = s.queueMgr.GetShuffle()
	status.Volume = s.opener.Volume()

	if status.State != "Stopped" {
		log.Printf("[PLAYER] Status: state=%s pos=%dms path=%s",
			status.State, status.Position, truncateForLog(status.Path, 50))
	}

	resp, err := NewSuccessResponse(status)
	if err != nil {
		return NewErrorResponse("internal error")
	}

	return resp
}

func (s *Server) handleGetAudioData() *Response {
	s.lastBandsMu.RLock()
	bands := append([]int(nil), s.lastBands...)
	s.lastBandsMu.RUnlock()

	resp, err := NewSuccessResponse(AudioDataResponse{Bands: bands})
	if err != nil {
		return NewErrorResponse("internal error")
	}
	return resp
}

func (s *Server) handleGetConfig() *Response {
	log.Printf("[CONFIG] Get config requested")
	cfg := s.configMgr.Get()

	resp, err := NewSuccessResponse(ConfigResponse{
		ConfigPath:         s.configMgr.GetPath(),
		LibraryPaths:       cfg.LibraryPaths,
		SampleRate:         cfg.Audio.SampleRate,
		BufferSizeMs:       cfg.Audio.BufferSizeMs,
		DefaultVolume:      cfg.Audio.DefaultVolume,
		ResumeOnStart:      cfg.Behavior.ResumeOnStart,
		RememberQueue:      cfg.Behavior.RememberQueue,
		RememberPosition:   cfg.Behavior.RememberPosition,
		FFTWindowSize:      cfg.Engine.FFTWindowSize,
		PlaylistDebounceMs: cfg.Engine.PlaylistDebounceMs,
		ProgressTickMs:     cfg.Engine.ProgressTickMs,
	})
	if err != nil {
		return NewErrorResponse("internal error")
	}

	return resp
}

func (s *Server) handleScanLibrary(ctx context.Context) *Response {
	cfg := s.configMgr.Get()

	if len(cfg.LibraryPaths) == 0 {
		log.Printf("[SCANNER] No library paths configured")
		return NewErrorResponse("no library paths configured")
	}

	if s.libScanner.IsRunning() {
		log.Printf("[SCANNER] Scan already in progress")
		return s.handleGetScanStatus()
	}

	log.Printf("[SCANNER] Starting async library scan for %d paths: %v", len(cfg.LibraryPaths), cfg.LibraryPaths)

	s.indexedMu.Lock()
	s.indexed = false
	s.indexedMu.Unlock()

	started := s.libScanner.ScanPathsAsync(ctx, cfg.LibraryPaths, true)
	if !started {
		return NewErrorResponse("failed to start scan")
	}

	resp, err := NewSuccessResponse(ScanStatusResponse{
		Status:   "scanning",
		Progress: 0,
		Message:  "Scan started",
	})
	if err != nil {
		return NewErrorResponse("internal error")
	}

	return resp
}

func (s *Server) handleGetScanStatus() *Response {
	status := s.libScanner.GetStatus()

	var scanResp *ScanResponse
	if status.Status == "complete" {
		results, metadata := s.libScanner.GetLastResults()

		s.indexScanResults(results)

		ipcResults := make([]ScanResult, 0, len(results))
		totalFiles := 0

		for _, sr := range results {
			files := make([]ScanFileInfo, 0, len(sr.Files))
			for _, f := range sr.Files {
				fileInfo := ScanFileInfo{
					Path:       f.Path,
					Size:       f.Size,
					ModifiedAt: f.ModifiedAt,
				}
				if f.Metadata != nil {
					fileInfo.Metadata = &ScanFileMetadata{
						Title:    f.Metadata.Title,
						Artist:   f.Metadata.Artist,
						Album:    f.Metadata.Album,
						Duration: f.Metadata.Duration,
					}
				}
				files = append(files, fileInfo)
			}

			ipcResults = append(ipcResults, ScanResult{
				LibraryPath: sr.LibraryPath,
				Files:       files,
				TotalFiles:  sr.TotalFiles,
				ScanTimeMs:  sr.ScanTimeMs,
				Error:       sr.Error,
			})

			totalFiles += sr.TotalFiles
		}

		var ipcMetadata *ScanMetadata
		if metadata != nil {
			allArtists := []ArtistNFO{}
			allAlbums := []AlbumNFO{}

			for _, a := range metadata.Artists {
				allArtists = append(allArtists, ArtistNFO{
					Name:          a.Name,
					SortName:      a.SortName,
					MusicBrainzID: a.MusicBrainzID,
					Rating:        a.Rating,
					Biography:     a.Biography,
					Genres:        a.Genre,
					Styles:        a.Style,
					Path:          a.Path,
				})
			}

			for _, a := range metadata.Albums {
				allAlbums = append(allAlbums, AlbumNFO{
					Title:              a.Title,
					Artist:             a.Artist,
					MusicBrainzAlbumID: a.MusicBrainzAlbumID,
					Year:               a.Year,
					Rating:             a.Rating,
					Genres:             a.Genre,
					Label:              a.Label,
					Path:               a.Path,
					AlbumPath:          a.AlbumPath,
				})
			}

			if len(allArtists) > 0 || len(allAlbums) > 0 || len(metadata.Artwork) > 0 {
				ipcMetadata = &ScanMetadata{
					Artists: allArtists,
					Albums:  allAlbums,
					Artwork: metadata.Artwork,
				}
			}
		}

		scanResp = &ScanResponse{
			Results:    ipcResults,
			TotalFiles: totalFiles,
			Metadata:   ipcMetadata,
		}

		log.Printf("[SCANNER] Scan complete: %d files", totalFiles)

		s.libScanner.ClearResults()
	}

	resp, err := NewSuccessResponse(ScanStatusResponse{
		Status:   status.Status,
		Progress: status.Progress,
		Message:  status.Message,
		Results:  scanResp,
	})
	if err != nil {
		return NewErrorResponse("internal error")
	}

	return resp
}

// indexScanResults folds a completed scan into the catalog and the
// search index, once per scan. Batch analysis is not triggered here:
// it runs on its own schedule via batcher.Run.
func (s *Server) indexScanResults(results []scanner.ScanResult) {
	s.indexedMu.Lock()
	if s.indexed {
		s.indexedMu.Unlock()
		return
	}
	s.indexed = true
	s.indexedMu.Unlock()

	if s.catalogDB == nil {
		return
	}

	for _, sr := range results {
		for _, f := range sr.Files {
			fd, err := catalog.Describe(sr.LibraryPath, f.Path, time.Unix(f.ModifiedAt, 0))
			if err != nil {
				log.Printf("[CATALOG] skipping %s: %v", f.Path, err)
				continue
			}
			id, err := s.catalogDB.InsertFile(fd)
			if err != nil {
				log.Printf("[CATALOG] failed to insert %s: %v", f.Path, err)
				continue
			}
			if s.searchIdx != nil {
				s.searchIdx.AddTerm(search.Track, id, fd.FileName)
				s.searchIdx.AddTerm(search.Directory, id, fd.Directory)
				if f.Metadata != nil {
					if f.Metadata.Artist != "" {
						s.searchIdx.AddTerm(search.Artist, id, f.Metadata.Artist)
					}
					if f.Metadata.Album != "" {
						s.searchIdx.AddTerm(search.Album, id, f.Metadata.Album)
					}
				}
			}
		}
	}
	log.Printf("[CATALOG] indexed scan results")
}

func (s *Server) handleSetConfig(req *Request) *Response {
	log.Printf("[CONFIG] Set config requested")
	var cfgReq ConfigRequest
	if err := json.Unmarshal(req.Data, &cfgReq); err != nil {
		return NewErrorResponse("invalid config request")
	}

	cfg := s.configMgr.Get()

	if cfgReq.LibraryPaths != nil {
		cfg.LibraryPaths = *cfgReq.LibraryPaths
	}
	if cfgReq.SampleRate != nil {
		cfg.Audio.SampleRate = *cfgReq.SampleRate
	}
	if cfgReq.BufferSizeMs != nil {
		cfg.Audio.BufferSizeMs = *cfgReq.BufferSizeMs
	}
	if cfgReq.DefaultVolume != nil {
		cfg.Audio.DefaultVolume = *cfgReq.DefaultVolume
	}
	if cfgReq.ResumeOnStart != nil {
		cfg.Behavior.ResumeOnStart = *cfgReq.ResumeOnStart
	}
	if cfgReq.RememberQueue != nil {
		cfg.Behavior.RememberQueue = *cfgReq.RememberQueue
	}
	if cfgReq.RememberPosition != nil {
		cfg.Behavior.RememberPosition = *cfgReq.RememberPosition
	}
	// PlaylistDebounceMs/ProgressTickMs feed the Engine's ticker at
	// startup (main.go's SetTimings call); the running Engine's ticker
	// isn't recreated mid-flight, so a change here takes effect on the
	// next daemon restart rather than immediately.
	if cfgReq.PlaylistDebounceMs != nil {
		cfg.Engine.PlaylistDebounceMs = *cfgReq.PlaylistDebounceMs
	}
	if cfgReq.ProgressTickMs != nil {
		cfg.Engine.ProgressTickMs = *cfgReq.ProgressTickMs
	}

	if err := s.configMgr.Update(cfg); err != nil {
		log.Printf("[CONFIG] Failed to save config: %v", err)
		return NewErrorResponse(fmt.Sprintf("failed to save config: %v", err))
	}

	log.Printf("[CONFIG] Config updated and saved")
	return s.handleGetConfig()
}

func (s *Server) handleGetQueue() *Response {
	log.Printf("[QUEUE] Get queue requested")

	playlist := s.eng.Playlist()
	cursor := s.eng.Cursor()

	ipcItems := make([]QueueItem, len(playlist))
	s.metaMu.Lock()
	for i, item := range playlist {
		ipcItems[i] = QueueItem{Path: item.FilePath}
		if tm, ok := s.trackMetas[item.TrackID]; ok {
			ipcItems[i].Metadata = tm.meta
		}
	}
	s.metaMu.Unlock()

	repeatMode := "off"
	switch s.queueMgr.GetRepeat() {
	case queue.RepeatOne:
		repeatMode = "one"
	case queue.RepeatAll:
		repeatMode = "all"
	}

	idx := -1
	if cursor.Ok {
		idx = cursor.Index
	}

	continueMode := "off"
	if s.queueMgr.GetContinueMode() == queue.ContinueSimilar {
		continueMode = "similar"
	}

	resp, err := NewSuccessResponse(GetQueueResponse{
		Items:        ipcItems,
		Index:        idx,
		RepeatMode:   repeatMode,
		Shuffle:      s.queueMgr.GetShuffle(),
		ContinueMode: continueMode,
	})
	if err != nil {
		return NewErrorResponse("internal error")
	}
	return resp
}

func (s *Server) handleSetRepeat(req *Request) *Response {
	var repeatReq SetRepeatRequest
	if err := json.Unmarshal(req.Data, &repeatReq); err != nil {
		return NewErrorResponse("invalid setRepeat request")
	}

	log.Printf("[QUEUE] Set repeat mode to: %s", repeatReq.Mode)

	var mode queue.RepeatMode
	var loopStatus media.LoopStatus
	switch repeatReq.Mode {
	case "one":
		mode = queue.RepeatOne
		loopStatus = media.LoopTrack
	case "all":
		mode = queue.RepeatAll
		loopStatus = media.LoopPlaylist
	default:
		mode = queue.RepeatOff
		loopStatus = media.LoopNone
	}

	s.queueMgr.SetRepeat(mode)

	if err := s.mediaSession.UpdateLoopStatus(loopStatus); err != nil {
		log.Printf("[QUEUE] Failed to update media session loop status: %v", err)
	}

	return s.handleStatus()
}

func (s *Server) handleSetShuffle(req *Request) *Response {
	var shuffleReq SetShuffleRequest
	if err := json.Unmarshal(req.Data, &shuffleReq); err != nil {
		return NewErrorResponse("invalid setShuffle request")
	}

	log.Printf("[QUEUE] Set shuffle to: %v", shuffleReq.Enabled)
	s.queueMgr.SetShuffle(shuffleReq.Enabled)

	if err := s.mediaSession.UpdateShuffle(shuffleReq.Enabled); err != nil {
		log.Printf("[QUEUE] Failed to update media session shuffle: %v", err)
	}

	return s.handleStatus()
}

func (s *Server) handleSetContinueMode(req *Request) *Response {
	var modeReq SetContinueModeRequest
	if err := json.Unmarshal(req.Data, &modeReq); err != nil {
		return NewErrorResponse("invalid setContinueMode request")
	}

	log.Printf("[QUEUE] Set continue mode to: %s", modeReq.Mode)

	var mode queue.ContinueMode
	switch modeReq.Mode {
	case "similar":
		mode = queue.ContinueSimilar
	default:
		mode = queue.ContinueOff
	}
	s.queueMgr.SetContinueMode(mode)

	return s.handleGetQueue()
}

func (s *Server) handleQueueJump(req *Request) *Response {
	var jumpReq QueueJumpRequest
	if err := json.Unmarshal(req.Data, &jumpReq); err != nil {
		return NewErrorResponse("invalid queueJump request")
	}

	log.Printf("[QUEUE] Jump to index: %d", jumpReq.Index)

	if jumpReq.Index < 0 || jumpReq.Index >= len(s.eng.Playlist()) {
		return NewErrorResponse("invalid queue index")
	}

	s.sendCmd(engine.Command{Kind: engine.CmdSwitch, Index: jumpReq.Index})
	return s.handleStatus()
}

func (s *Server) handleQueueRemove(req *Request) *Response {
	var removeReq QueueRemoveRequest
	if err := json.Unmarshal(req.Data, &removeReq); err != nil {
		return NewErrorResponse("invalid queueRemove request")
	}

	log.Printf("[QUEUE] Remove item at index: %d", removeReq.Index)

	if removeReq.Index < 0 || removeReq.Index >= len(s.eng.Playlist()) {
		return NewErrorResponse("invalid queue index")
	}

	s.sendCmd(engine.Command{Kind: engine.CmdRemoveFromPlaylist, Index: removeReq.Index})
	return s.handleStatus()
}

func (s *Server) handleQueueMove(req *Request) *Response {
	var moveReq QueueMoveRequest
	if err := json.Unmarshal(req.Data, &moveReq); err != nil {
		return NewErrorResponse("invalid queueMove request")
	}

	log.Printf("[QUEUE] Move item from %d to %d", moveReq.FromIndex, moveReq.ToIndex)

	n := len(s.eng.Playlist())
	if moveReq.FromIndex < 0 || moveReq.FromIndex >= n || moveReq.ToIndex < 0 || moveReq.ToIndex >= n {
		return NewErrorResponse("invalid queue indices")
	}

	s.sendCmd(engine.Command{Kind: engine.CmdMovePlayListItem, FromIdx: moveReq.FromIndex, ToIdx: moveReq.ToIndex})
	return s.handleStatus()
}

func (s *Server) sendResponse(conn net.Conn, resp *Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = conn.Write(data)
	return err
}

func (s *Server) sendError(conn net.Conn, msg string) {
	s.sendResponse(conn, NewErrorResponse(msg))
}

// Audio data subscription handlers

func (s *Server) handleSubscribeAudioData(conn net.Conn) *Response {
	s.audioSubsMu.Lock()
	s.audioSubs[conn] = true
	count := len(s.audioSubs)
	s.audioSubsMu.Unlock()

	log.Printf("[AUDIO] Client subscribed to audio data (total: %d)", count)

	resp, _ := NewSuccessResponse(map[string]bool{"subscribed": true})
	return resp
}

func (s *Server) handleUnsubscribeAudioData(conn net.Conn) *Response {
	s.audioSubsMu.Lock()
	delete(s.audioSubs, conn)
	count := len(s.audioSubs)
	s.audioSubsMu.Unlock()

	log.Printf("[AUDIO] Client unsubscribed from audio data (remaining: %d)", count)

	resp, _ := NewSuccessResponse(map[string]bool{"subscribed": false})
	return resp
}

// pushPlaylistUpdated is called from RunEventLoop on every debounced
// PlaylistUpdated event, broadcasting the new track id order to every
// connected client (not just audio-data subscribers, since any client
// may be showing a queue view).
func (s *Server) pushPlaylistUpdated(ids []int32) {
	msgBytes, err := NewPushMessage("playlistUpdated", PlaylistUpdatedResponse{TrackIDs: ids})
	if err != nil {
		return
	}
	msgBytes = append(msgBytes, '\n')

	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		if _, err := conn.Write(msgBytes); err != nil {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
		}
	}
}

// pushAudioData is called from RunEventLoop on every RealtimeFFT event,
// converting the one-sided spectrum to the legacy 128-band byte
// visualization and forwarding to subscribers.
func (s *Server) pushAudioData(spectrum []float64) {
	cfg := s.configMgr.Get()
	sampleRate := cfg.Audio.SampleRate
	if sampleRate == 0 {
		sampleRate = 44100
	}

	bandsU8 := audio.ToBands(spectrum, sampleRate, 128)
	bands := make([]int, len(bandsU8))
	for i, b := range bandsU8 {
		bands[i] = int(b)
	}

	s.lastBandsMu.Lock()
	s.lastBands = bands
	s.lastBandsMu.Unlock()

	s.audioSubsMu.RLock()
	if len(s.audioSubs) == 0 {
		s.audioSubsMu.RUnlock()
		return
	}
	subs := make([]net.Conn, 0, len(s.audioSubs))
	for conn := range s.audioSubs {
		subs = append(subs, conn)
	}
	s.audioSubsMu.RUnlock()

	position := s.cachedStatus().Position
	timestamp := time.Now().UnixMilli()

	msgBytes, err := NewPushMessage("audioData", AudioDataResponse{
		Bands:     bands,
		Position:  position,
		Timestamp: timestamp,
	})
	if err != nil {
		return
	}
	msgBytes = append(msgBytes, '\n')

	for _, conn := range subs {
		if _, err := conn.Write(msgBytes); err != nil {
			s.audioSubsMu.Lock()
			delete(s.audioSubs, conn)
			s.audioSubsMu.Unlock()
		}
	}
}
