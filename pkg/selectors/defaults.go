package selectors

func text(name, selector string) Strategy {
	return Strategy{Name: name, Selector: selector}
}

func attr(name, selector, attribute string) Strategy {
	return Strategy{Name: name, Selector: selector, Attr: attribute}
}

// Default returns the built-in registry, most reliable strategy first.
func Default() *Registry {
	return New(Version,
		Spec{Field: FieldUnit, Strategies: []Strategy{
			text("update-urn", `div.feed-shared-update-v2[data-urn]`),
			text("data-id", `div[data-id^="urn:li:activity"]`),
			text("update-v2", `.feed-shared-update-v2`),
			text("data-urn", `div[data-urn]`),
			text("article", `article`),
		}},
		Spec{Field: FieldContent, Strategies: []Strategy{
			text("update-components-text", `.update-components-text`),
			text("commentary", `.feed-shared-update-v2__commentary`),
			text("description", `.feed-shared-update-v2__description`),
			text("inline-show-more", `.feed-shared-inline-show-more-text`),
			text("shared-text", `.feed-shared-text`),
			text("break-words", `span.break-words`),
		}},
		Spec{Field: FieldAuthorName, Strategies: []Strategy{
			text("actor-name-hidden", `.feed-shared-actor__name .visually-hidden`),
			text("actor-name-link", `.feed-shared-actor__name a`),
			text("components-name-link", `.update-components-actor__name a`),
			text("components-title-visible", `.update-components-actor__title span[aria-hidden="true"]`),
			text("components-name", `.update-components-actor__name`),
			text("actor-name", `.feed-shared-actor__name`),
			text("test-id", `[data-test-id="post-author-name"]`),
		}},
		Spec{Field: FieldAuthorTitle, Strategies: []Strategy{
			text("actor-description-visible", `.feed-shared-actor__description span[aria-hidden="true"]`),
			text("actor-description", `.feed-shared-actor__description`),
			text("components-description-visible", `.update-components-actor__description span[aria-hidden="true"]`),
			text("components-description", `.update-components-actor__description`),
			text("test-id", `[data-test-id="post-author-headline"]`),
		}},
		Spec{Field: FieldAuthorProfile, Strategies: []Strategy{
			attr("components-meta-link", `a.update-components-actor__meta-link`, "href"),
			attr("components-image-link", `a.update-components-actor__image`, "href"),
			attr("actor-container-link", `a.feed-shared-actor__container-link`, "href"),
			attr("any-in-link", `a[href*="/in/"]`, "href"),
			attr("any-company-link", `a[href*="/company/"]`, "href"),
		}},
		Spec{Field: FieldTimestamp, Strategies: []Strategy{
			attr("time-datetime", `time[datetime]`, "datetime"),
			text("components-sub-description", `.update-components-actor__sub-description span[aria-hidden="true"]`),
			text("components-sub-description-text", `.update-components-actor__sub-description`),
			text("actor-sub-description", `.feed-shared-actor__sub-description`),
			text("time-text", `time`),
		}},
		Spec{Field: FieldLikes, Strategies: []Strategy{
			text("reactions-count", `.social-details-social-counts__reactions-count`),
			text("social-counts-reactions", `.social-counts-reactions__count`),
			attr("reaction-button-label", `button[aria-label*="reaction"]`, "aria-label"),
			attr("like-button-label", `button[aria-label*="like"]`, "aria-label"),
		}},
		Spec{Field: FieldComments, Strategies: []Strategy{
			attr("comments-button-label", `button[aria-label*="comment"]`, "aria-label"),
			text("comments-count", `.social-details-social-counts__comments`),
			text("social-counts-comments", `.social-counts-comments__count`),
		}},
		Spec{Field: FieldShares, Strategies: []Strategy{
			attr("reposts-button-label", `button[aria-label*="repost"]`, "aria-label"),
			text("reshares-count", `.social-counts__reshares-count`),
			text("reposts-item", `.social-details-social-counts__item--right-aligned`),
		}},
		Spec{Field: FieldMedia, Strategies: []Strategy{
			attr("media-img", `img[src*="media.licdn.com"]`, "src"),
			attr("dms-img", `img[src*="dms.licdn.com"]`, "src"),
			attr("lazy-img", `img[data-delayed-url]`, "data-delayed-url"),
			attr("video-poster", `video[poster]`, "poster"),
		}},
		Spec{Field: FieldLinks, Strategies: []Strategy{
			attr("anchors", `a[href]`, "href"),
		}},
		Spec{Field: FieldPostURL, Strategies: []Strategy{
			attr("feed-update-link", `a[href*="/feed/update/"]`, "href"),
			attr("posts-link", `a[href*="/posts/"]`, "href"),
			attr("unit-urn", ``, "data-urn"),
			attr("unit-data-id", ``, "data-id"),
			attr("nested-urn", `[data-urn^="urn:li:activity"]`, "data-urn"),
		}},
		Spec{Field: FieldPollMarker, Strategies: []Strategy{
			text("shared-poll", `.feed-shared-poll`),
			text("components-poll", `.update-components-poll`),
		}},
		Spec{Field: FieldVideoMarker, Strategies: []Strategy{
			text("video-element", `video`),
			text("linkedin-video", `.update-components-linkedin-video`),
			text("shared-video", `.feed-shared-linkedin-video`),
		}},
		Spec{Field: FieldArticleMarker, Strategies: []Strategy{
			text("shared-article", `.feed-shared-article`),
			text("components-article", `.update-components-article`),
		}},

		Spec{Field: MarkerLoggedIn, Strategies: []Strategy{
			text("me-photo", `img.global-nav__me-photo`),
			text("global-nav", `nav.global-nav`),
			text("feed-nav-link", `[data-test-global-nav-link="feed"]`),
		}},
		Spec{Field: MarkerChallenge, Strategies: []Strategy{
			text("challenge-form", `.challenge-form`),
			text("captcha-internal", `#captcha-internal`),
			text("captcha-iframe", `iframe[src*="captcha"]`),
			text("pin-input", `input[name="pin"]`),
			text("otp-input", `input[autocomplete="one-time-code"]`),
		}},
		Spec{Field: MarkerLoginWall, Strategies: []Strategy{
			text("authwall", `.authwall-join-form`),
			text("login-form", `form.login__form`),
			text("session-key", `input[name="session_key"]`),
		}},
		Spec{Field: MarkerBlocked, Strategies: []Strategy{
			text("restricted-banner", `.restricted-account`),
			text("error-page", `.error-container--rate-limit`),
			text("http-429", `[data-test-id="too-many-requests"]`),
		}},
		Spec{Field: MarkerLoginForm, Strategies: []Strategy{
			text("password-error", `#error-for-password`),
			text("username-error", `#error-for-username`),
			text("alert", `.alert-content`),
		}},
		Spec{Field: MarkerLoadMore, Strategies: []Strategy{
			text("finite-scroll", `button.scaffold-finite-scroll__load-button`),
			text("show-more-results", `button[aria-label*="more results"]`),
		}},
	)
}
