package browser

// snapshotScript collects controls, buttons and body text in document
// order. Radios and checkboxes are grouped by name, or by their ARIA
// container for custom widgets such as Google Forms.
const snapshotScript = `() => {
	const ATTR = 'data-autofill-id';
	const root = document.documentElement;
	let seq = Number(root.getAttribute('data-autofill-seq') || '0');
	const stamp = (el) => {
		let id = el.getAttribute(ATTR);
		if (!id) {
			seq += 1;
			id = 'af-' + seq;
			el.setAttribute(ATTR, id);
		}
		return id;
	};
	const clean = (s) => (s || '').replace(/\s+/g, ' ').trim();
	const visible = (el) => {
		if (!el || el.hidden) return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return false;
		return el.getClientRects().length > 0;
	};
	const textOf = (ids) => ids.split(/\s+/)
		.map((i) => document.getElementById(i))
		.filter(Boolean)
		.map((n) => clean(n.textContent))
		.join(' ');
	const heading = (el) => {
		const item = el.closest('[role="listitem"]');
		if (!item) return '';
		const h = item.querySelector('[role="heading"]');
		return h ? clean(h.textContent) : '';
	};
	const labelText = (l) => {
		const c = l.cloneNode(true);
		c.querySelectorAll('select, textarea, option, script, style').forEach((n) => n.remove());
		return clean(c.textContent);
	};
	const ownLabel = (el) => {
		const aria = el.getAttribute('aria-label');
		if (aria) return clean(aria);
		const by = el.getAttribute('aria-labelledby');
		if (by) {
			const t = textOf(by);
			if (t) return t;
		}
		if (el.id) {
			const l = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
			if (l) return labelText(l);
		}
		const wrap = el.closest('label');
		if (wrap) return labelText(wrap);
		return '';
	};
	const controlLabel = (el) => ownLabel(el) || heading(el) ||
		clean(el.getAttribute('placeholder')) || clean(el.getAttribute('name'));
	const groupLabel = (el, container) => {
		if (container) {
			const t = ownLabel(container);
			if (t) return t;
		}
		const fs = el.closest('fieldset');
		if (fs) {
			const lg = fs.querySelector('legend');
			if (lg) return clean(lg.textContent);
		}
		return heading(el) || clean(el.getAttribute('name'));
	};
	const isDisabled = (el) => !!el.disabled || el.getAttribute('aria-disabled') === 'true';
	const isRequired = (el) => !!el.required || el.getAttribute('aria-required') === 'true';

	const elements = [];
	const groups = new Map();
	const nodes = document.querySelectorAll('input, textarea, select, [role="radio"], [role="checkbox"]');
	for (const el of nodes) {
		const tag = el.tagName.toLowerCase();
		const role = el.getAttribute('role');
		const type = tag === 'input' ? (el.getAttribute('type') || 'text').toLowerCase() : '';
		if (['hidden', 'submit', 'button', 'reset', 'image', 'file'].includes(type)) continue;

		const choice = type === 'radio' || type === 'checkbox' || role === 'radio' || role === 'checkbox';
		if (choice) {
			const radio = type === 'radio' || role === 'radio';
			let container = null;
			let key;
			if (tag === 'input' && el.name) {
				key = 'n:' + (el.form ? stamp(el.form) : '') + ':' + el.name;
			} else {
				container = el.closest('[role="radiogroup"], [role="group"], [role="listitem"]');
				key = container ? 'c:' + stamp(container) : 'e:' + stamp(el);
			}
			const id = stamp(el);
			const checked = tag === 'input' ? el.checked : el.getAttribute('aria-checked') === 'true';
			const label = ownLabel(el) || clean(el.getAttribute('data-value')) || clean(el.value);
			let g = groups.get(key);
			if (!g) {
				g = {
					id: id,
					tag: tag,
					type: radio ? 'radio' : 'checkbox',
					kind: radio ? 'single_choice' : 'multi_choice',
					label: groupLabel(el, container),
					name: el.getAttribute('name') || '',
					value: '',
					visible: false,
					disabled: true,
					required: false,
					options: [],
				};
				groups.set(key, g);
				elements.push(g);
			}
			const lbl = el.closest('label');
			g.visible = g.visible || visible(el) || visible(lbl);
			g.disabled = g.disabled && isDisabled(el);
			g.required = g.required || isRequired(el) || (container !== null && isRequired(container));
			g.options.push({ id: id, label: label, value: el.value || el.getAttribute('data-value') || '', selected: checked });
			if (checked) g.value = g.value ? g.value + ', ' + label : label;
			continue;
		}

		const item = {
			id: stamp(el),
			tag: tag,
			type: type,
			kind: 'short_text',
			label: controlLabel(el),
			name: el.getAttribute('name') || '',
			value: '',
			visible: visible(el),
			disabled: isDisabled(el),
			required: isRequired(el),
		};
		if (tag === 'select') {
			item.kind = el.multiple ? 'multi_choice' : 'dropdown';
			item.options = Array.from(el.options).map((o) => ({ label: clean(o.text), value: o.value, selected: o.selected }));
			item.value = Array.from(el.selectedOptions).map((o) => clean(o.text)).join(', ');
		} else {
			if (tag === 'textarea') item.kind = 'long_text';
			item.value = el.value || '';
		}
		elements.push(item);
	}

	const buttons = [];
	const seen = new Set();
	for (const el of document.querySelectorAll('button, input[type="submit"], input[type="button"], input[type="image"], [role="button"]')) {
		if (seen.has(el)) continue;
		seen.add(el);
		const label = clean(el.getAttribute('aria-label')) || clean(el.textContent) || clean(el.value);
		if (!label) continue;
		buttons.push({ id: stamp(el), label: label, visible: visible(el), disabled: isDisabled(el) });
	}

	root.setAttribute('data-autofill-seq', String(seq));
	const text = document.body ? clean(document.body.innerText) : '';
	return {
		url: location.href,
		title: document.title,
		elements: elements,
		buttons: buttons,
		text: text.slice(0, 20000),
	};
}`

// readValueScript returns null when the element is gone.
const readValueScript = `(id) => {
	const el = document.querySelector('[data-autofill-id="' + id + '"]');
	if (!el) return null;
	if (el.tagName === 'SELECT') {
		return Array.from(el.selectedOptions).map((o) => o.text.replace(/\s+/g, ' ').trim()).join(', ');
	}
	if (el.isContentEditable) return el.innerText;
	return el.value ?? '';
}`

const checkedScript = `(id) => {
	const el = document.querySelector('[data-autofill-id="' + id + '"]');
	if (!el) return null;
	if (el.tagName === 'INPUT') return !!el.checked;
	return el.getAttribute('aria-checked') === 'true';
}`

// selectScript matches options by visible text and fires the events a
// framework listens for. Returns null when the element is gone and false
// when no option matched.
const selectScript = `({ id, label }) => {
	const el = document.querySelector('[data-autofill-id="' + id + '"]');
	if (!el) return null;
	const want = label.replace(/\s+/g, ' ').trim();
	let hit = false;
	for (const o of el.options) {
		if (o.text.replace(/\s+/g, ' ').trim() !== want) continue;
		if (el.multiple) {
			o.selected = true;
		} else {
			el.value = o.value;
		}
		hit = true;
		if (!el.multiple) break;
	}
	if (hit) {
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	}
	return hit;
}`

// clickScript is the fallback for controls covered by custom styling.
const clickScript = `(id) => {
	const el = document.querySelector('[data-autofill-id="' + id + '"]');
	if (!el) return false;
	el.click();
	return true;
}`
