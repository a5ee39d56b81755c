package models

import "fmt"

// SeenExtraInformation is a tagged union keyed by media lot. The zero value is
// the None variant; at most one of the pointers is set.
type SeenExtraInformation struct {
	Show    *SeenShowExtraInformation    `json:"show,omitempty"`
	Podcast *SeenPodcastExtraInformation `json:"podcast,omitempty"`
}

// SeenShowExtraInformation identifies the episode of a show that was watched
type SeenShowExtraInformation struct {
	Season  int `json:"season" validate:"min=0"`
	Episode int `json:"episode" validate:"min=0"`
}

// SeenPodcastExtraInformation identifies the podcast episode that was listened to
type SeenPodcastExtraInformation struct {
	Episode int `json:"episode" validate:"min=1"`
}

// ShowExtraInformation builds the show variant
func ShowExtraInformation(season, episode int) SeenExtraInformation {
	return SeenExtraInformation{Show: &SeenShowExtraInformation{Season: season, Episode: episode}}
}

// PodcastExtraInformation builds the podcast variant
func PodcastExtraInformation(episode int) SeenExtraInformation {
	return SeenExtraInformation{Podcast: &SeenPodcastExtraInformation{Episode: episode}}
}

// IsNone reports whether no variant is set
func (e SeenExtraInformation) IsNone() bool {
	return e.Show == nil && e.Podcast == nil
}

// ForLot narrows the union to the variant allowed for lot. Shows must carry
// season and episode; podcasts may carry an episode; every other lot gets None.
func (e SeenExtraInformation) ForLot(lot MediaLot) (SeenExtraInformation, error) {
	if e.Show != nil && e.Podcast != nil {
		return SeenExtraInformation{}, fmt.Errorf("%w: extra information has more than one variant", ErrValidation)
	}

	switch lot {
	case MediaLotShow:
		if e.Show == nil {
			return SeenExtraInformation{}, ErrMissingSeasonEpisode
		}
		return SeenExtraInformation{Show: e.Show}, nil
	case MediaLotPodcast:
		return SeenExtraInformation{Podcast: e.Podcast}, nil
	default:
		return SeenExtraInformation{}, nil
	}
}
