package api

import (
	"github.com/flosch/pongo2/v6"
)

// The public pages are compiled in so the binary serves them without a
// template directory. Overriding the look means editing these and
// rebuilding, which is acceptable for the small public surface.
var (
	formPage = pongo2.Must(pongo2.FromString(`<!DOCTYPE html>
<html>
<head><title>Submit a ticket</title></head>
<body>
<h1>Submit a ticket</h1>
{% if error %}<ul class="errorlist"><li>{{ error }}</li></ul>{% endif %}
<form method="post" action="/">
  <label for="id_queue">Queue</label>
  <select name="queue" id="id_queue">
    {% for queue in queues %}
    <option value="{{ queue.ID }}"{% if queue.ID == selected_queue %} selected{% endif %}>{{ queue.Title }}</option>
    {% endfor %}
  </select>
  <label for="id_title">Summary</label>
  <input type="text" name="title" id="id_title" value="{{ title }}" required>
  <label for="id_submitter_email">Your email address</label>
  <input type="email" name="submitter_email" id="id_submitter_email" value="{{ submitter_email }}" required>
  <label for="id_body">Description</label>
  <textarea name="body" id="id_body">{{ body }}</textarea>
  <label for="id_priority">Priority</label>
  <select name="priority" id="id_priority">
    {% for p in priorities %}
    <option value="{{ p.Value }}"{% if p.Value == priority %} selected{% endif %}>{{ p.Label }}</option>
    {% endfor %}
  </select>
  <label for="id_cc">Copy to (comma separated)</label>
  <input type="text" name="cc" id="id_cc" value="{{ cc }}">
  {% for field in fields %}
  <label for="id_{{ field.Key }}">{{ field.Label }}</label>
  <input type="text" name="{{ field.Key }}" id="id_{{ field.Key }}" value="{{ field.Value }}">
  {% endfor %}
  <button type="submit">Submit</button>
</form>
</body>
</html>`))

	viewPage = pongo2.Must(pongo2.FromString(`<!DOCTYPE html>
<html>
<head><title>{{ ticket_for_url }} {{ title }}</title></head>
<body>
<h1>{{ title }} <span class="ticket-ref">[{{ ticket_for_url }}]</span></h1>
<p class="meta">Queue: {{ queue_title }} &middot; Status: {{ status }} &middot; Opened {{ opened }}</p>
<p class="meta">Submitted by {{ submitter }}</p>
{% if ccs %}<p class="meta">Copies to: {% for cc in ccs %}{{ cc }}{% if not forloop.Last %}, {% endif %}{% endfor %}</p>{% endif %}
{% for item in followups %}
<div class="followup">
  <h2>{{ item.Title }}</h2>
  <p class="meta">{{ item.When }}</p>
  <pre>{{ item.Body }}</pre>
</div>
{% endfor %}
</body>
</html>`))

	notFoundPage = pongo2.Must(pongo2.FromString(`<!DOCTYPE html>
<html>
<head><title>Not found</title></head>
<body><h1>Ticket not found</h1></body>
</html>`))
)
