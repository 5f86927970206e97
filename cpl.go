package imf

import (
	"encoding/xml"
	"fmt"
	"io"
)

// BaseResource describes a contiguous region of a track file played at a
// given rate: the resource's native tick rate, the offset into the track
// file at which playback starts, the number of edit units played, and how
// many consecutive times that region repeats.
type BaseResource struct {
	EditRate    Rational
	EntryPoint  EditUnits
	Duration    EditUnits // the resource's SourceDuration, not its IntrinsicDuration
	RepeatCount EditUnits
}

// TrackFileResource is a resource whose essence comes from a referenced
// track file.
type TrackFileResource struct {
	BaseResource
	TrackFileUUID UUID
}

// Marker is a single cue point within a MarkerResource.
type Marker struct {
	Label  string
	Scope  string
	Offset EditUnits
}

// MarkerResource is parsed for structural validity only; it is never fed to
// the packet pump.
type MarkerResource struct {
	BaseResource
	Markers []Marker
}

// TrackFileVirtualTrack is an ordered sequence of TrackFileResources sharing
// one TrackId; this is the only virtual track variant that participates in
// packet emission.
type TrackFileVirtualTrack struct {
	ID        UUID
	Resources []TrackFileResource
}

// MarkerVirtualTrack is an ordered sequence of MarkerResources; parsed, but
// never read by the composition engine.
type MarkerVirtualTrack struct {
	ID        UUID
	Resources []MarkerResource
}

// CPL is the in-memory model of a parsed Composition Playlist.
type CPL struct {
	ID           UUID
	ContentTitle string
	EditRate     Rational
	MainMarkers  *MarkerVirtualTrack
	MainImage2D  *TrackFileVirtualTrack
	MainAudio    []*TrackFileVirtualTrack
}

// ParseCPL parses a CompositionPlaylist document into a CPL. The first
// error encountered aborts the parse; no partial CPL is ever returned.
func ParseCPL(r io.Reader) (*CPL, error) {
	var root element
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, invalidData("parse CPL", "CompositionPlaylist", err)
	}
	if root.XMLName.Local != "CompositionPlaylist" {
		return nil, invalidData("parse CPL", fmt.Sprintf("root element %q", root.XMLName.Local), nil)
	}

	cpl := &CPL{}

	idEl, ok := firstChildByName(root, "Id")
	if !ok {
		return nil, invalidData("parse CPL", "Id", nil)
	}
	id, err := readUUID(idEl.Text)
	if err != nil {
		return nil, invalidData("parse CPL", "Id", err)
	}
	cpl.ID = id

	if titleEl, ok := firstChildByName(root, "ContentTitle"); ok {
		cpl.ContentTitle = titleEl.Text
	}

	rateEl, ok := firstChildByName(root, "EditRate")
	if !ok {
		return nil, invalidData("parse CPL", "EditRate", nil)
	}
	rate, err := readRational(rateEl.Text)
	if err != nil || rate.Num <= 0 {
		return nil, invalidData("parse CPL", "EditRate", err)
	}
	cpl.EditRate = rate

	segmentList, ok := firstChildByName(root, "SegmentList")
	if !ok {
		return nil, invalidData("parse CPL", "SegmentList", nil)
	}

	audioIndex := make(map[UUID]int)
	for _, segment := range segmentList.Children {
		if segment.XMLName.Local != "Segment" {
			continue
		}
		sequenceList, ok := firstChildByName(segment, "SequenceList")
		if !ok {
			continue
		}
		for _, seq := range sequenceList.Children {
			switch seq.XMLName.Local {
			case "MainImageSequence":
				track, err := parseTrackFileSequence(seq)
				if err != nil {
					return nil, err
				}
				if cpl.MainImage2D == nil {
					cpl.MainImage2D = track
				} else if cpl.MainImage2D.ID != track.ID {
					return nil, invalidData("parse CPL", "MainImageSequence/TrackId", nil)
				} else {
					cpl.MainImage2D.Resources = append(cpl.MainImage2D.Resources, track.Resources...)
				}
			case "MainAudioSequence":
				track, err := parseTrackFileSequence(seq)
				if err != nil {
					return nil, err
				}
				if i, seen := audioIndex[track.ID]; seen {
					cpl.MainAudio[i].Resources = append(cpl.MainAudio[i].Resources, track.Resources...)
				} else {
					audioIndex[track.ID] = len(cpl.MainAudio)
					cpl.MainAudio = append(cpl.MainAudio, track)
				}
			case "MarkerSequence":
				track, err := parseMarkerSequence(seq)
				if err != nil {
					return nil, err
				}
				if cpl.MainMarkers == nil {
					cpl.MainMarkers = track
				} else if cpl.MainMarkers.ID != track.ID {
					return nil, invalidData("parse CPL", "MarkerSequence/TrackId", nil)
				} else {
					cpl.MainMarkers.Resources = append(cpl.MainMarkers.Resources, track.Resources...)
				}
			default:
				// Unknown sequence kind: skipped silently. The parser has no
				// logger and does not report skipped sequences to its caller,
				// so no warning is logged for them.
			}
		}
	}

	return cpl, nil
}

func parseTrackIDAndResourceList(seq element) (UUID, element, error) {
	trackIDEl, ok := firstChildByName(seq, "TrackId")
	if !ok {
		return UUID{}, element{}, invalidData("parse CPL", seq.XMLName.Local+"/TrackId", nil)
	}
	trackID, err := readUUID(trackIDEl.Text)
	if err != nil {
		return UUID{}, element{}, invalidData("parse CPL", seq.XMLName.Local+"/TrackId", err)
	}
	resourceList, ok := firstChildByName(seq, "ResourceList")
	if !ok {
		return UUID{}, element{}, invalidData("parse CPL", seq.XMLName.Local+"/ResourceList", nil)
	}
	return trackID, resourceList, nil
}

func parseTrackFileSequence(seq element) (*TrackFileVirtualTrack, error) {
	trackID, resourceList, err := parseTrackIDAndResourceList(seq)
	if err != nil {
		return nil, err
	}
	track := &TrackFileVirtualTrack{ID: trackID}
	for _, res := range resourceList.Children {
		if res.XMLName.Local != "Resource" {
			continue
		}
		r, err := parseTrackFileResource(res)
		if err != nil {
			return nil, err
		}
		track.Resources = append(track.Resources, r)
	}
	return track, nil
}

func parseMarkerSequence(seq element) (*MarkerVirtualTrack, error) {
	trackID, resourceList, err := parseTrackIDAndResourceList(seq)
	if err != nil {
		return nil, err
	}
	track := &MarkerVirtualTrack{ID: trackID}
	for _, res := range resourceList.Children {
		if res.XMLName.Local != "Resource" {
			continue
		}
		r, err := parseMarkerResource(res)
		if err != nil {
			return nil, err
		}
		track.Resources = append(track.Resources, r)
	}
	return track, nil
}

// parseBaseResource reads the fields common to every resource kind and
// validates the cross-field constraints from §4.2.
func parseBaseResource(res element) (BaseResource, error) {
	rateEl, ok := firstChildByName(res, "EditRate")
	if !ok {
		return BaseResource{}, invalidData("parse CPL", "Resource/EditRate", nil)
	}
	rate, err := readRational(rateEl.Text)
	if err != nil || rate.Num <= 0 {
		return BaseResource{}, invalidData("parse CPL", "Resource/EditRate", err)
	}

	intrinsicEl, ok := firstChildByName(res, "IntrinsicDuration")
	if !ok {
		return BaseResource{}, invalidData("parse CPL", "Resource/IntrinsicDuration", nil)
	}
	intrinsic, err := readUint(intrinsicEl.Text)
	if err != nil {
		return BaseResource{}, invalidData("parse CPL", "Resource/IntrinsicDuration", err)
	}

	var entryPoint EditUnits
	if entryEl, ok := firstChildByName(res, "EntryPoint"); ok {
		entryPoint, err = readUint(entryEl.Text)
		if err != nil {
			return BaseResource{}, invalidData("parse CPL", "Resource/EntryPoint", err)
		}
	}
	if entryPoint > intrinsic {
		return BaseResource{}, invalidData("parse CPL", "Resource/EntryPoint", nil)
	}

	duration := intrinsic - entryPoint
	if durEl, ok := firstChildByName(res, "SourceDuration"); ok {
		duration, err = readUint(durEl.Text)
		if err != nil {
			return BaseResource{}, invalidData("parse CPL", "Resource/SourceDuration", err)
		}
	}
	if duration == 0 {
		return BaseResource{}, invalidData("parse CPL", "Resource/SourceDuration", nil)
	}
	if entryPoint+duration > intrinsic {
		return BaseResource{}, invalidData("parse CPL", "Resource/EntryPoint+SourceDuration", nil)
	}

	repeatCount := EditUnits(1)
	if repEl, ok := firstChildByName(res, "RepeatCount"); ok {
		repeatCount, err = readUint(repEl.Text)
		if err != nil {
			return BaseResource{}, invalidData("parse CPL", "Resource/RepeatCount", err)
		}
	}
	if repeatCount < 1 {
		return BaseResource{}, invalidData("parse CPL", "Resource/RepeatCount", nil)
	}

	return BaseResource{
		EditRate:    rate,
		EntryPoint:  entryPoint,
		Duration:    duration,
		RepeatCount: repeatCount,
	}, nil
}

func parseTrackFileResource(res element) (TrackFileResource, error) {
	base, err := parseBaseResource(res)
	if err != nil {
		return TrackFileResource{}, err
	}
	idEl, ok := firstChildByName(res, "TrackFileId")
	if !ok {
		return TrackFileResource{}, invalidData("parse CPL", "Resource/TrackFileId", nil)
	}
	id, err := readUUID(idEl.Text)
	if err != nil {
		return TrackFileResource{}, invalidData("parse CPL", "Resource/TrackFileId", err)
	}
	return TrackFileResource{BaseResource: base, TrackFileUUID: id}, nil
}

func parseMarkerResource(res element) (MarkerResource, error) {
	base, err := parseBaseResource(res)
	if err != nil {
		return MarkerResource{}, err
	}
	mr := MarkerResource{BaseResource: base}
	markerList, ok := firstChildByName(res, "MarkerList")
	if !ok {
		return mr, nil
	}
	for _, m := range markerList.Children {
		if m.XMLName.Local != "Marker" {
			continue
		}
		var marker Marker
		if labelEl, ok := firstChildByName(m, "Label"); ok {
			marker.Label = labelEl.Text
			for _, a := range labelEl.Attrs {
				if a.Name.Local == "scope" {
					marker.Scope = a.Value
				}
			}
		}
		if offsetEl, ok := firstChildByName(m, "Offset"); ok {
			off, err := readUint(offsetEl.Text)
			if err != nil {
				return MarkerResource{}, invalidData("parse CPL", "Marker/Offset", err)
			}
			marker.Offset = off
		}
		mr.Markers = append(mr.Markers, marker)
	}
	return mr, nil
}
