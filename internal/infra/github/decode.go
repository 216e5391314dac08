package github

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

func decodeUser(data []byte) (*User, error) {
	var u User

	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		var err error
		switch key {
		case "id":
			u.ID, err = d.Int64()
		case "login":
			u.Login, err = d.Str()
		case "type":
			u.Type, err = d.Str()
		case "avatar_url":
			u.AvatarURL, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if u.ID == 0 || u.Login == "" {
		return nil, errors.New("user without id or login")
	}

	return &u, nil
}

// decodeRepoStars returns the stars of non-fork repositories in a repos page
// and how many repositories the page held.
func decodeRepoStars(data []byte) (stars int64, count int, err error) {
	d := jx.DecodeBytes(data)
	err = d.Arr(func(d *jx.Decoder) error {
		count++

		var (
			repoStars int64
			fork      bool
		)
		err := d.Obj(func(d *jx.Decoder, key string) error {
			if d.Next() == jx.Null {
				return d.Null()
			}
			var err error
			switch key {
			case "stargazers_count":
				repoStars, err = d.Int64()
			case "fork":
				fork, err = d.Bool()
			default:
				err = d.Skip()
			}
			return err
		})
		if err != nil {
			return err
		}

		if !fork {
			stars += repoStars
		}
		return nil
	})

	return stars, count, err
}

// decodeRateLimit extracts resources.core.remaining from GET /rate_limit.
func decodeRateLimit(data []byte) (int64, error) {
	var (
		remaining int64
		found     bool
	)

	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "resources" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "core" {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "remaining" {
					return d.Skip()
				}
				v, err := d.Int64()
				remaining, found = v, err == nil
				return err
			})
		})
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.New("resources.core.remaining missing")
	}

	return remaining, nil
}
