package collector

// scanJS runs inside the page. It locates ad cards, serializes each
// card's subtree into the renderer-independent node shape, and returns
// the result as a JSON string.
//
// Discovery works from the "Library ID:" label every card prints in its
// footer: find the labeled element, then climb ancestors until the
// subtree contains media from the asset CDN, which marks the card root.
// An explicit CSS selector bypasses discovery entirely.
const scanJS = `(selector) => {
	const MAX_CLIMB = 15;

	const serialize = (el) => {
		const cs = window.getComputedStyle(el);
		const r = el.getBoundingClientRect();
		let text = '';
		for (const n of el.childNodes) {
			if (n.nodeType === Node.TEXT_NODE) {
				const t = n.textContent.trim();
				if (t) text += (text ? '\n' : '') + t;
			}
		}
		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;
		const children = [];
		for (const c of el.children) children.push(serialize(c));
		return {
			tag: el.tagName.toLowerCase(),
			text,
			attrs,
			font_weight: parseInt(cs.fontWeight, 10) || 0,
			rect: {
				top: r.top, bottom: r.bottom,
				left: r.left, right: r.right,
				width: r.width, height: r.height,
			},
			children,
		};
	};

	const findCards = () => {
		if (selector) {
			return Array.from(document.querySelectorAll(selector));
		}
		const cards = [];
		const seen = new Set();
		for (const el of document.querySelectorAll('div, span')) {
			let own = '';
			for (const n of el.childNodes) {
				if (n.nodeType === Node.TEXT_NODE) own += n.textContent;
			}
			if (!own.includes('Library ID:')) continue;

			let root = el;
			for (let i = 0; i < MAX_CLIMB && root.parentElement; i++) {
				if (root.querySelector('video, img[src*="scontent"]')) break;
				if (root.parentElement.tagName === 'BODY') break;
				root = root.parentElement;
			}
			if (seen.has(root)) continue;
			seen.add(root);
			cards.push(root);
		}
		return cards;
	};

	const out = [];
	for (const card of findCards()) {
		const m = card.textContent.match(/ID:\s*(\d+)/);
		out.push({
			id: m ? m[1] : '',
			html: card.outerHTML,
			root: serialize(card),
		});
	}
	return JSON.stringify(out);
}`
